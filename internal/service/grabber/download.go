package grabber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb"

	"github.com/oshokin/ghidra-grabber/internal/logger"
)

// scratchArchiveName is the file a downloaded archive is written to.
const scratchArchiveName = "Ghidra.zip"

// errBadHTTPStatus is returned when the server answers with anything but 200 OK.
var errBadHTTPStatus = errors.New("unexpected http status")

// downloadTransport bounds the wait for response headers only. Release archives are
// hundreds of megabytes, so reading the body must not run into a client deadline.
func downloadTransport(headerTimeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // Always *http.Transport.
	transport.ResponseHeaderTimeout = headerTimeout

	return transport
}

// download streams rawURL into destPath, optionally rendering a progress bar.
func (r *runner) download(ctx context.Context, rawURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", r.cfg.UserAgent)

	response, err := r.downloader.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	outputFile, err := os.Create(filepath.Clean(destPath))
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	body := io.Reader(response.Body)

	if r.opts.ShowProgress {
		bar := pb.New64(max(response.ContentLength, 0)).SetUnits(pb.U_BYTES)
		bar.Output = r.stdout
		bar.Start()

		defer bar.Finish()

		body = bar.NewProxyReader(response.Body)
	}

	written, err := io.Copy(outputFile, body)
	if err != nil {
		_ = outputFile.Close()

		return fmt.Errorf("write %s: %w", destPath, err)
	}

	if err = outputFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destPath, err)
	}

	logger.DebugKV(ctx, "Downloaded archive", "path", destPath, "bytes", written)

	return nil
}
