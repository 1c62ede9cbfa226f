package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/whisperhallu/transcriber/cmd/transcriber/call"
	"github.com/whisperhallu/transcriber/cmd/transcriber/transcribe"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type transcriptionResponse struct {
	transcribe.Result
	SRTURL string `json:"srt_url,omitempty"`
}

// handleTranscribe accepts an uploaded audio file (multipart field
// "content") or a "url" form value pointing at one, and returns the
// structured transcript.
func (s *Server) handleTranscribe(c echo.Context) error {
	lng := c.FormValue("lng")
	if lng == "" {
		lng = "en"
	}
	lngInput := c.FormValue("lng_input")
	isMusic, _ := strconv.ParseBool(c.FormValue("is_music"))
	wantSRT, _ := strconv.ParseBool(c.FormValue("srt"))
	stretch, _ := strconv.ParseFloat(c.FormValue("stretch"), 64)

	path, err := s.materializeInput(c)
	if err != nil {
		return err
	}
	defer os.Remove(path)

	res, err := s.svc.Transcribe(c.Request().Context(), call.Request{
		Path:          path,
		Language:      lng,
		InputLanguage: lngInput,
		Prompt:        c.FormValue("prompt"),
		IsMusic:       isMusic,
		WantSRT:       wantSRT,
		Stretch:       stretch,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp := transcriptionResponse{Result: res}

	if s.uploader != nil && res.SRT != "" {
		key := "subtitles/" + uuid.NewString() + ".srt"
		url, err := s.uploader.Upload(c.Request().Context(), key, strings.NewReader(res.SRT), "application/x-subrip")
		if err != nil {
			// Upload failures do not fail the request, the subtitle
			// text is still in the body.
			c.Logger().Errorf("subtitle upload failed: %v", err)
		} else {
			resp.SRTURL = url
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// materializeInput writes the request's audio, whether uploaded or remote,
// to a private temporary file. The caller removes it.
func (s *Server) materializeInput(c echo.Context) (string, error) {
	dst := filepath.Join(os.TempDir(), "upload-"+uuid.NewString())

	if fh, err := c.FormFile("content"); err == nil {
		if fh.Size == 0 {
			return "", echo.NewHTTPError(http.StatusBadRequest, "uploaded file is empty")
		}
		src, err := fh.Open()
		if err != nil {
			return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to open upload: %v", err))
		}
		defer src.Close()
		if err := writeFile(dst, src); err != nil {
			return "", err
		}
		return dst, nil
	}

	url := c.FormValue("url")
	if url == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, "no audio file or URL found in the request")
	}

	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, url, nil)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid URL: %v", err))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to download audio: %v", err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to download audio: status %d", resp.StatusCode))
	}

	if err := writeFile(dst, resp.Body); err != nil {
		return "", err
	}
	return dst, nil
}

func writeFile(dst string, src io.Reader) error {
	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	return nil
}
