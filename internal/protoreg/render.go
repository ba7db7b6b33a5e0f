package protoreg

import (
	"io"
	"os"
	"path/filepath"

	"github.com/jhump/protoreflect/v2/protoprint"
)

// Render prints the generated file as .proto source.
func Render(r *Registry, w io.Writer) error {
	pp := protoprint.Printer{}
	return pp.PrintProtoFile(r.File(), w)
}

// WriteFile renders the generated file under outDir at its package path.
func WriteFile(r *Registry, outDir string) (string, error) {
	fp := filepath.Join(outDir, filepath.FromSlash(r.File().Path()))
	if err := os.MkdirAll(filepath.Dir(fp), 0o755); err != nil {
		return "", err
	}
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := Render(r, f); err != nil {
		return "", err
	}
	return fp, f.Close()
}
