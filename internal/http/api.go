package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"carlot/internal/domain"
	"carlot/internal/service"
	"carlot/internal/storage"
)

const imagesField = "images"

// Options configures the HTTP surface.
type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	// MaxFileBytes caps how much of a single uploaded file is read into memory.
	MaxFileBytes int64
	Logger       *logrus.Logger
	// Middleware runs before routing, e.g. metrics collection.
	Middleware []gin.HandlerFunc
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// Handler wires HTTP routes to the listing service.
type Handler struct {
	listings service.ListingService
	opts     Options
	log      *logrus.Logger
}

func NewHandler(listings service.ListingService, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		listings: listings,
		opts:     opts,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.opts.Middleware...)
	router.Use(requestLogger(h.log), corsMiddleware(h.opts.AllowedOrigins))

	if h.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.opts.Metrics))
	}

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		auth := authMiddleware([]byte(h.opts.JWTSecret))
		for _, prefix := range []string{"/listings", "/cars"} {
			g := api.Group(prefix, auth)
			g.POST("", h.createListing)
			g.GET("", h.listListings)
			g.GET("/:id", h.getListing)
			g.PUT("/:id", h.updateListing)
			g.DELETE("/:id", h.deleteListing)
		}
	}
}

func (h *Handler) createListing(c *gin.Context) {
	files, err := h.formFiles(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	listing, err := h.listings.CreateListing(c.Request.Context(), service.CreateListingInput{
		Owner:       ownerFrom(c),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
		Images:      files,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, listingToResponse(*listing))
}

func (h *Handler) listListings(c *gin.Context) {
	listings, err := h.listings.ListListings(c.Request.Context(), ownerFrom(c), c.Query("search"))
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]ListingResponse, len(listings))
	for i := range listings {
		resp[i] = listingToResponse(listings[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getListing(c *gin.Context) {
	listing, err := h.listings.GetListing(c.Request.Context(), ownerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listingToResponse(*listing))
}

func (h *Handler) updateListing(c *gin.Context) {
	files, err := h.formFiles(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	in := service.UpdateListingInput{
		Owner:       ownerFrom(c),
		ID:          c.Param("id"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
		Images:      files,
	}
	if keep, ok := c.GetPostForm("keepImages"); ok {
		in.KeepImages = &keep
	}

	listing, err := h.listings.UpdateListing(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, listingToResponse(*listing))
}

func (h *Handler) deleteListing(c *gin.Context) {
	if err := h.listings.DeleteListing(c.Request.Context(), ownerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "listing deleted"})
}

// formFiles reads the uploaded images of a multipart request. Requests that
// are not multipart carry no files.
func (h *Handler) formFiles(c *gin.Context) ([]storage.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: malformed multipart body: %v", service.ErrValidation, err)
	}

	headers := form.File[imagesField]
	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		data, err := h.readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, storage.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return files, nil
}

// readFile reads at most one byte past MaxFileBytes so the service can
// reject oversized images without buffering all of them.
func (h *Handler) readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	var r io.Reader = f
	if h.opts.MaxFileBytes > 0 {
		r = io.LimitReader(f, h.opts.MaxFileBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type TagsResponse struct {
	CarType string `json:"car_type"`
	Company string `json:"company"`
	Dealer  string `json:"dealer"`
}

type ListingResponse struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Images      []string     `json:"images"`
	Tags        TagsResponse `json:"tags"`
	User        string       `json:"user"`
	CreatedAt   string       `json:"createdAt"`
	UpdatedAt   string       `json:"updatedAt"`
}

func listingToResponse(l domain.Listing) ListingResponse {
	images := l.Images
	if images == nil {
		images = []string{}
	}
	return ListingResponse{
		ID:          l.ID,
		Title:       l.Title,
		Description: l.Description,
		Images:      images,
		Tags: TagsResponse{
			CarType: l.Tags.CarType,
			Company: l.Tags.Company,
			Dealer:  l.Tags.Dealer,
		},
		User:      l.Owner,
		CreatedAt: l.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: l.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
