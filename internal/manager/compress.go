package manager

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// gzipFile compresses src into dst, leaving src in place.
func gzipFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - paths under the backup directory
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	gz := gzip.NewWriter(out)
	if _, err := io.Copy(gz, in); err != nil {
		gz.Close()  //nolint:errcheck
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to compress %s: %w", src, err)
	}
	if err := gz.Close(); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return out.Close()
}

// gunzipFile decompresses src into dst, leaving src in place.
func gunzipFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	gz, err := gzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("failed to read gzip header of %s: %w", src, err)
	}
	defer gz.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, gz); err != nil { // #nosec G110 - restoring our own artifact
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to decompress %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return out.Close()
}

// copyFile copies src to dst with the given mode.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		out.Close() //nolint:errcheck
		return fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	return out.Close()
}
