package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// maxSecretFileSize bounds file:// reads.
const maxSecretFileSize = 64 << 10

// FileProvider resolves "file:///absolute/path" references, the form used
// for container-mounted secrets. Surrounding whitespace is trimmed.
type FileProvider struct{}

// NewFileProvider creates a file provider.
func NewFileProvider() *FileProvider { return &FileProvider{} }

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Resolve(_ context.Context, ref string) (*Secret, error) {
	path, ok := strings.CutPrefix(ref, "file://")
	if !ok {
		return nil, fmt.Errorf("%w: file provider only handles file:// references", ErrSecretNotFound)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: empty file path", ErrSecretNotFound)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %q does not exist", ErrSecretNotFound, path)
		}
		return nil, fmt.Errorf("reading secret file %q: %w", path, err)
	}
	if info.Size() > maxSecretFileSize {
		return nil, fmt.Errorf("secret file %q is larger than %d bytes", path, maxSecretFileSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secret file %q: %w", path, err)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return nil, fmt.Errorf("%w: file %q is empty", ErrSecretNotFound, path)
	}
	return &Secret{
		Value:    value,
		Metadata: map[string]string{"source": "file", "path": path},
	}, nil
}
