package objectstore

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	require.Equal(t, "https://files.example.com/answers/a/b.pdf", ObjectURL("https://files.example.com", "answers", "/a/b.pdf"))
	require.Equal(t, "/answers/x.txt", ObjectURL("", "answers", "x.txt"))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Bucket: "answers"}, zerolog.Nop())
	require.Error(t, err)
}
