package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// resolveToken returns the credential token. An empty configured token is
// prompted for on the terminal without echo; without a terminal it is an error.
func resolveToken(configured string, in *os.File, out io.Writer) (string, error) {
	if configured != "" {
		return configured, nil
	}
	if in == nil || !term.IsTerminal(int(in.Fd())) {
		return "", fmt.Errorf("login token required: set --token, HANDLE_CRAWLER_TOKEN or 'token' in the config file")
	}

	_, _ = fmt.Fprint(out, "Directory login token: ")
	raw, err := term.ReadPassword(int(in.Fd()))
	_, _ = fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("login token is empty")
	}
	return token, nil
}

// readLines reads non-empty trimmed lines, used for handle lists on stdin.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return lines, nil
}
