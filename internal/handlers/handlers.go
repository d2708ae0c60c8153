package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"github.com/Brownie44l1/charcam/internal/chart"
	"github.com/Brownie44l1/charcam/internal/display"
	"github.com/Brownie44l1/charcam/internal/frame"
	"github.com/Brownie44l1/charcam/internal/loop"
)

// MaxUploadSize bounds multipart image uploads.
const MaxUploadSize = 10 << 20

// Classifier is the loop surface the handlers drive.
type Classifier interface {
	Trigger(ctx context.Context) (*loop.Result, bool, error)
	TriggerFrame(ctx context.Context, f frame.Frame) (*loop.Result, bool, error)
	Ready() bool
	Fatal() error
	Stats() loop.Stats
	Last() *loop.Result
}

// Board exposes the current label text.
type Board interface {
	State() display.State
}

type Handler struct {
	classifier Classifier
	board      Board
	chart      *chart.BarChart
	logger     *zap.Logger
}

func NewHandler(classifier Classifier, board Board, barChart *chart.BarChart, logger *zap.Logger) *Handler {
	return &Handler{
		classifier: classifier,
		board:      board,
		chart:      barChart,
		logger:     logger.Named("http"),
	}
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, h *Handler) {
	router.Use(enableCORS())
	router.GET("/health", h.Health)
	router.POST("/predict", h.Predict)
	router.POST("/predict/image", h.PredictFromImage)
	router.GET("/state", h.State)
	router.GET("/chart.svg", h.Chart)
}

func enableCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// Health reports 503 once startup has failed; the process stays up so the
// failure can be inspected.
func (h *Handler) Health(c *gin.Context) {
	if err := h.classifier.Fatal(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	if !h.classifier.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "state": h.classifier.Stats().State})
}

// PixelsRequest carries a raw H×W×C frame. Pixels is base64 in JSON.
type PixelsRequest struct {
	Height   int    `json:"height"`
	Width    int    `json:"width"`
	Channels int    `json:"channels" binding:"required"`
	Pixels   []byte `json:"pixels"`
}

// Predict triggers a cycle on the current camera frame. A JSON body with raw
// pixels runs the cycle on that frame instead.
func (h *Handler) Predict(c *gin.Context) {
	var body []byte
	if c.Request.ContentLength != 0 && c.Request.Body != nil {
		data, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize))
		if err != nil {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "pixel payload exceeds upload limit"})
			return
		}
		body = bytes.TrimSpace(data)
	}

	// Chunked requests report an unknown length; only the bytes tell.
	if len(body) == 0 {
		res, accepted, err := h.classifier.Trigger(c.Request.Context())
		h.respond(c, res, accepted, err)
		return
	}

	var req PixelsRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid pixel payload: " + err.Error()})
		return
	}
	f, err := frame.FromPixels(req.Height, req.Width, req.Channels, req.Pixels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, accepted, err := h.classifier.TriggerFrame(c.Request.Context(), f)
	h.respond(c, res, accepted, err)
}

// PredictFromImage runs a cycle on an uploaded image (form field "image").
func (h *Handler) PredictFromImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize)

	file, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided. Use 'image' as the form field name"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image format. Supported: JPEG, PNG"})
		return
	}
	h.logger.Debug("received image",
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)

	res, accepted, err := h.classifier.TriggerFrame(c.Request.Context(), frame.Frame{Image: img, CapturedAt: time.Now()})
	h.respond(c, res, accepted, err)
}

func (h *Handler) respond(c *gin.Context, res *loop.Result, accepted bool, err error) {
	switch {
	case errors.Is(err, loop.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"accepted": true, "error": err.Error()})
	case !accepted:
		c.JSON(http.StatusAccepted, gin.H{"accepted": false, "state": h.classifier.Stats().State})
	default:
		c.JSON(http.StatusOK, gin.H{
			"accepted":    true,
			"cycle_id":    res.CycleID,
			"class_id":    res.ClassID,
			"label":       res.Label,
			"confidences": res.Confidences,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}
}

// State returns the label text, the chart bars and the loop counters.
func (h *Handler) State(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"display": h.board.State(),
		"chart":   h.chart.Snapshot(),
		"loop":    h.classifier.Stats(),
		"last":    h.classifier.Last(),
	})
}

func (h *Handler) Chart(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.chart.WriteSVG(&buf); err != nil {
		h.logger.Error("failed to render chart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render chart"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/svg+xml; charset=utf-8", buf.Bytes())
}
