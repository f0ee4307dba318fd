package utils

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

func ShortenString(s string, l int) string {
	if len(s) > l && l != 0 {
		return fmt.Sprintf("%s...", s[:l])
	}
	return s
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeFilename lowercases name and replaces every run of characters
// other than a-z and 0-9 with a single dash.
func SanitizeFilename(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(s, "-")
}

// ClosestMatch returns the candidate with the smallest edit distance to s.
// Candidates further away than half the length of s are not considered a match.
func ClosestMatch(s string, candidates []string) (string, bool) {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(s, c)
		if bestDist == -1 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist == -1 || bestDist > max(1, len(s)/2) {
		return "", false
	}
	return best, true
}

// Difference returns the elements of a that are not contained in b,
// preserving the order of a.
func Difference[T comparable](a, b []T) []T {
	inB := make(map[T]bool, len(b))
	for _, e := range b {
		inB[e] = true
	}
	result := []T{}
	for _, e := range a {
		if !inB[e] {
			result = append(result, e)
		}
	}
	return result
}

// CopyFile copies the content of src to dst, truncating dst if it exists.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
