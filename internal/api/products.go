package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"forest-fashion/internal/models"
	"forest-fashion/internal/service"
	"forest-fashion/internal/stock"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

const (
	maxImages    = 10
	maxImageSize = 10 << 20
)

// listProducts serves the catalogue. Discontinued products are hidden
// unless an admin asks for ?status=all.
func (h *Handler) listProducts(c *gin.Context) {
	filter := models.ProductFilter{Category: c.Query("category")}
	if c.Query("featured") == "true" {
		featured := true
		filter.Featured = &featured
	}
	if n, err := strconv.Atoi(c.Query("limit")); err == nil && n > 0 {
		filter.Limit = n
	}
	if status := c.Query("status"); status != "" && h.optionalCaller(c).IsAdmin() {
		if status == "all" {
			filter.AllStatuses = true
		} else {
			filter.Status = status
		}
	}

	products, err := h.svc.Products.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.svc.Products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// productStock reports one size/color. A combination the product does not
// carry is reported as out of stock.
func (h *Handler) productStock(c *gin.Context) {
	level, err := h.svc.Products.StockLevel(c.Request.Context(), c.Param("id"), c.Query("size"), c.Query("color"))
	if err != nil && !errors.Is(err, stock.ErrUnavailable) {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *Handler) createProduct(c *gin.Context) {
	draft, err := productDraft(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	product, err := h.svc.Products.Create(c.Request.Context(), draft, callerOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	draft, err := productDraft(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	product, err := h.svc.Products.Update(c.Request.Context(), c.Param("id"), draft, callerOf(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.svc.Products.Delete(c.Request.Context(), c.Param("id"), callerOf(c).UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// productDraft reads the admin product form, multipart or url-encoded.
func productDraft(c *gin.Context) (service.ProductDraft, error) {
	draft := service.ProductDraft{
		Name:            c.PostForm("name"),
		Description:     c.PostForm("description"),
		FullDescription: c.PostForm("fullDescription"),
		Price:           c.PostForm("price"),
		SalePrice:       c.PostForm("salePrice"),
		Category:        c.PostForm("category"),
		Subcategory:     c.PostForm("subcategory"),
		Brand:           c.PostForm("brand"),
		SKU:             c.PostForm("sku"),
		Variants:        c.PostForm("variants"),
		Materials:       c.PostForm("materials"),
		Care:            c.PostForm("care"),
		Weight:          c.PostForm("weight"),
		Dimensions:      c.PostForm("dimensions"),
		Tags:            c.PostForm("tags"),
		MetaTitle:       c.PostForm("metaTitle"),
		MetaDescription: c.PostForm("metaDescription"),
		Status:          c.PostForm("status"),
		Featured:        c.PostForm("featured"),
		IsDigital:       c.PostForm("isDigital"),
	}

	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return draft, nil
		}
		return draft, invalidImages("Invalid form data")
	}

	files := form.File["images"]
	if len(files) > maxImages {
		return draft, invalidImages(fmt.Sprintf("At most %d images are allowed", maxImages))
	}
	for _, fh := range files {
		upload, err := readImage(fh)
		if err != nil {
			return draft, err
		}
		draft.Uploads = append(draft.Uploads, upload)
	}
	return draft, nil
}

// readImage loads one uploaded file and sniffs its type from the content;
// the client supplied Content-Type is ignored.
func readImage(fh *multipart.FileHeader) (service.Upload, error) {
	if fh.Size > maxImageSize {
		return service.Upload{}, invalidImages(fmt.Sprintf("Image %s exceeds the 10MB limit", fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, invalidImages(fmt.Sprintf("Failed to read image %s", fh.Filename))
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return service.Upload{}, invalidImages(fmt.Sprintf("Failed to read image %s", fh.Filename))
	}
	if len(data) > maxImageSize {
		return service.Upload{}, invalidImages(fmt.Sprintf("Image %s exceeds the 10MB limit", fh.Filename))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return service.Upload{}, invalidImages("Only image files are allowed")
	}
	return service.Upload{MIME: mt.String(), Data: data}, nil
}

func invalidImages(message string) error {
	return &service.ValidationError{Field: "images", Message: message}
}
