package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"kbsync/internal/config"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

const tokenFile = "token.json"

// TokenType is the scheme the disk API expects in the Authorization header.
const TokenType = "OAuth"

func NewToken(accessToken string) *oauth2.Token {
	return &oauth2.Token{AccessToken: accessToken, TokenType: TokenType}
}

// NewClient returns an HTTP client that signs every request with the static
// token. An *http.Client stored in ctx under oauth2.HTTPClient is used as
// the underlying transport.
func NewClient(ctx context.Context, accessToken string) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(NewToken(accessToken)))
}

func Authorize() error {
	fmt.Println("Create an application token for the disk REST API and paste it below.")
	fmt.Print("Token: ")

	var token string
	if _, err := fmt.Scan(&token); err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}

	path, err := SaveToken(token)
	if err != nil {
		return err
	}

	fmt.Printf("Token saved to %s\n", path)
	return nil
}

func SaveToken(accessToken string) (string, error) {
	if accessToken == "" {
		return "", errors.New("empty token")
	}

	dir, err := config.Dir()
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(NewToken(accessToken))
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, tokenFile)
	if err := os.WriteFile(path, b, 0600); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}

	return path, nil
}

func LoadToken() (string, error) {
	dir, err := config.Dir()
	if err != nil {
		return "", err
	}

	b, err := os.ReadFile(filepath.Join(dir, tokenFile))
	if err != nil {
		return "", fmt.Errorf("auth needed. Please run 'kbsync auth' first: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(b, &token); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	return token.AccessToken, nil
}
