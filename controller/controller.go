// Package controller holds the dashboard's HTTP handlers. Every handler runs
// behind the session middleware except the landing catalogue.
package controller

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"dashboard/auth"
	"dashboard/backend"
	"dashboard/database"
	"dashboard/locations"
	"dashboard/notify"
	"dashboard/poller"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxImageSize = 5 << 20

var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Deps struct {
	Auth     *auth.Service
	Client   *backend.Client
	Pollers  *poller.Manager
	Trackers *locations.Registry
	Hub      *notify.Hub
	History  *database.History
	Logger   *zap.Logger
	Now      func() time.Time
}

type Handler struct {
	auth     *auth.Service
	client   *backend.Client
	pollers  *poller.Manager
	trackers *locations.Registry
	hub      *notify.Hub
	history  *database.History
	log      *zap.Logger
	now      func() time.Time
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Handler{
		auth:     d.Auth,
		client:   d.Client,
		pollers:  d.Pollers,
		trackers: d.Trackers,
		hub:      d.Hub,
		history:  d.History,
		log:      d.Logger.Named("controller"),
		now:      d.Now,
	}
}

// session is auth.SessionFrom with the 401 written for the caller.
func session(c *gin.Context) (*auth.Session, bool) {
	sess := auth.SessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Unauthorized access"})
		return nil, false
	}
	return sess, true
}

// imageUpload reads an optional image field. It returns nil when the field
// is absent.
func imageUpload(c *gin.Context, field string) (*backend.Upload, error) {
	file, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get uploaded file: %w", err)
	}

	if file.Size > maxImageSize {
		return nil, errors.New("file too large (max 5MB)")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		return nil, errors.New("invalid file type, only JPG/JPEG/PNG allowed")
	}

	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer f.Close()
	body, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	return &backend.Upload{
		Field:       field,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     bytes.NewReader(body),
	}, nil
}

// badUpload answers a rejected image with 400.
func badUpload(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}

func respondOK(c *gin.Context, message string, data any) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(http.StatusOK, body)
}

func forceParam(c *gin.Context) bool {
	v := strings.ToLower(c.Query("force"))
	return v == "1" || v == "true"
}

func attachment(c *gin.Context, name string, write func(io.Writer) error) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Status(http.StatusOK)
	if err := write(c.Writer); err != nil {
		_ = c.Error(err)
	}
}
