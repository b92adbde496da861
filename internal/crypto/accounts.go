package crypto

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sharpline/valuebot/internal/platform/duel"
)

// ParseAccounts parses the accounts file format, one account per line:
//
//	name,username,password[,proxyhost:port:proxyuser:proxypass]
//
// Blank lines and lines starting with # are skipped.
func ParseAccounts(data []byte) ([]duel.Account, error) {
	var accounts []duel.Account

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			return nil, fmt.Errorf("crypto: accounts line %d: want name,username,password", lineNo)
		}

		acct := duel.Account{
			Name:     strings.TrimSpace(fields[0]),
			Username: strings.TrimSpace(fields[1]),
			Password: strings.TrimSpace(fields[2]),
		}
		if acct.Name == "" || acct.Username == "" || acct.Password == "" {
			return nil, fmt.Errorf("crypto: accounts line %d: empty field", lineNo)
		}

		if len(fields) >= 4 && strings.TrimSpace(fields[3]) != "" {
			proxy, err := parseProxy(strings.TrimSpace(fields[3]))
			if err != nil {
				return nil, fmt.Errorf("crypto: accounts line %d: %w", lineNo, err)
			}
			acct.Proxy = proxy
		}
		accounts = append(accounts, acct)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("crypto: scan accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, errors.New("crypto: accounts file holds no accounts")
	}
	return accounts, nil
}

// parseProxy parses host:port or host:port:user:pass.
func parseProxy(s string) (*duel.ProxyConfig, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		return &duel.ProxyConfig{Host: parts[0], Port: parts[1]}, nil
	case 4:
		return &duel.ProxyConfig{Host: parts[0], Port: parts[1], Username: parts[2], Password: parts[3]}, nil
	}
	return nil, fmt.Errorf("proxy %q: want host:port or host:port:user:pass", s)
}

// LoadAccounts reads the accounts file at path. When password is non-empty
// the file is expected to be an EncryptBlob envelope; otherwise plaintext.
func LoadAccounts(path, password string) ([]duel.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: reading accounts file: %w", err)
	}
	if password != "" {
		data, err = DecryptBlob(data, password)
		if err != nil {
			return nil, err
		}
	}
	return ParseAccounts(data)
}
