package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jfbus/httprs"
)

func isURL(name string) bool {
	return strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://")
}

// openInput opens a local file or an http(s) URL.
func openInput(ctx context.Context, name string) (io.ReadCloser, error) {
	if !isURL(name) {
		return os.Open(name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
	if err != nil {
		return nil, err
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		res.Body.Close()

		return nil, fmt.Errorf("get %s: %s", name, res.Status)
	}

	return httprs.NewHttpReadSeeker(res), nil
}

// baseName returns the input name without directory and extension.
func baseName(name string) string {
	if isURL(name) {
		name = path.Base(strings.SplitN(name, "?", 2)[0])
	} else {
		name = filepath.Base(name)
	}

	return strings.TrimSuffix(name, filepath.Ext(name))
}
