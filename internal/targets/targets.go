package targets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/ppiankov/bucketspectre/internal/probe"
)

// ErrNoTargets is returned when neither arguments nor the file name any resource
var ErrNoTargets = errors.New("no resource names given")

var (
	// Bucket URLs are reduced to the bucket name
	urlPattern = regexp.MustCompile(`^(?:s3|gs)://([^/]+)`)

	bucketPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]{1,61}[a-z0-9]$`)
	containerPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9\-]{1,61}[a-z0-9]$`)
)

// Load collects resource names from args followed by file.
// file may be "-" to read stdin. Order is kept and duplicates are not removed.
func Load(args []string, file string, stdin io.Reader) ([]string, error) {
	var names []string
	for _, arg := range args {
		if name := normalize(arg); name != "" {
			names = append(names, name)
		}
	}

	if file != "" {
		fromFile, err := loadFile(file, stdin)
		if err != nil {
			return nil, err
		}
		names = append(names, fromFile...)
	}

	if len(names) == 0 {
		return nil, ErrNoTargets
	}
	return names, nil
}

func loadFile(path string, stdin io.Reader) ([]string, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open targets file: %w", err)
		}
		defer func() { _ = file.Close() }()
		r = file
	}

	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blanks and comments
		if line == "" || line[0] == '#' {
			continue
		}
		if name := normalize(line); name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets from %s: %w", path, err)
	}
	return names, nil
}

func normalize(raw string) string {
	name := strings.TrimSpace(raw)
	if m := urlPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	return name
}

// Check returns a warning when name cannot be valid for provider.
// An empty string means the name looks plausible.
func Check(provider probe.Provider, name string) string {
	switch provider {
	case probe.ProviderAzure:
		if !containerPattern.MatchString(name) || strings.Contains(name, "--") {
			return fmt.Sprintf("%q is not a valid container name (3-63 lowercase letters, digits, hyphens)", name)
		}
	default:
		if !bucketPattern.MatchString(name) || strings.Contains(name, "..") {
			return fmt.Sprintf("%q is not a valid bucket name (3-63 lowercase letters, digits, dots, hyphens)", name)
		}
	}
	return ""
}
