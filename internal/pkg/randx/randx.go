/*
Package randx generates identifiers: UUID v4 message and thread IDs, and
Base62 random strings for upload object keys.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the number of characters in Base62Chars.
	Base62Len = int64(len(Base62Chars))

	// FileKeyRandomLength is the length of the random segment in an upload key.
	FileKeyRandomLength = 16
)

// Base62 returns a string of n characters drawn from Base62Chars using crypto/rand.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := range n {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// MessageID generates a UUID v4 string identifying a message record.
func MessageID() string {
	return uuid.New().String()
}

// ThreadID generates a UUID v4 string identifying a direct-conversation thread.
func ThreadID() string {
	return uuid.New().String()
}

// FileKey builds an object key "<prefix>/<random><ext>" for an upload.
func FileKey(prefix, ext string) (string, error) {
	random, err := Base62(FileKeyRandomLength)
	if err != nil {
		return "", err
	}
	return prefix + "/" + random + strings.ToLower(ext), nil
}

// IsValidFileKey reports whether key has the shape produced by FileKey for prefix.
func IsValidFileKey(key, prefix string) bool {
	rest, ok := strings.CutPrefix(key, prefix+"/")
	if !ok {
		return false
	}

	name, _, _ := strings.Cut(rest, ".")
	if len(name) != FileKeyRandomLength {
		return false
	}

	for _, char := range name {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}

	return !strings.ContainsAny(rest, "/\\")
}
