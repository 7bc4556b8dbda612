package handlers

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"medigo/internal/logger"
	"medigo/internal/middleware"
	"medigo/internal/models"
	"medigo/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var imageExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service   *services.ProductService
	validate  *validator.Validate
	uploadDir string
}

// NewProductHandler creates a new ProductHandler. Uploaded images are
// written below uploadDir/products.
func NewProductHandler(service *services.ProductService, uploadDir string) *ProductHandler {
	return &ProductHandler{
		service:   service,
		validate:  newValidator(),
		uploadDir: uploadDir,
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, auth fiber.Handler) {
	pharmacyOnly := middleware.RequireRoles(models.RolePharmacy)

	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	// registered before /:id so "my" is not read as an id
	productRoutes.Get("/my/products", auth, pharmacyOnly, h.HandleGetMyProducts)
	productRoutes.Get("/:id", h.HandleGetProductByID)
	productRoutes.Post("/", auth, pharmacyOnly, h.HandleCreateProduct)
	productRoutes.Put("/:id", auth, pharmacyOnly, h.HandleUpdateProduct)
	productRoutes.Delete("/:id", auth, pharmacyOnly, h.HandleDeleteProduct)
	productRoutes.Put("/:id/stock", auth, pharmacyOnly, h.HandleUpdateStock)
}

// HandleGetProducts lists active products matching the query string.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	q := services.ProductQuery{
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		PharmacyID: c.Query("pharmacyId"),
		Pagination: pagination(c),
	}
	for key, dst := range map[string]**float64{"minPrice": &q.MinPrice, "maxPrice": &q.MaxPrice} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Validation failed",
				"errors":  fiber.Map{key: key + " must be a number"},
			})
		}
		*dst = &v
	}

	page, err := h.service.List(c.UserContext(), q)
	if err != nil {
		return respondError(c, "Could not retrieve products", err)
	}
	return paginated(c, page)
}

// HandleGetProductByID retrieves a single product by its ID.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	product, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, "Product not found", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

type PricingRequest struct {
	Price         *float64 `json:"price" validate:"required,gte=0"`
	DiscountPrice *float64 `json:"discountPrice" validate:"omitempty,gte=0"`
}

type StockRequest struct {
	Quantity          *int   `json:"quantity" validate:"required,gte=0"`
	LowStockThreshold *int   `json:"lowStockThreshold" validate:"omitempty,gte=0"`
	Unit              string `json:"unit" validate:"omitempty,oneof=piece bottle box strip"`
}

// ProductRequest is the create/update body. Multipart requests send
// pricing, stock and specifications as JSON-encoded form fields.
type ProductRequest struct {
	Name                 string            `json:"name" form:"name" validate:"required,min=3,max=200"`
	Description          string            `json:"description" form:"description" validate:"required,min=10"`
	Category             string            `json:"category" form:"category" validate:"required,oneof=prescription otc supplement medical-equipment personal-care"`
	Manufacturer         string            `json:"manufacturer" form:"manufacturer" validate:"required"`
	Pricing              PricingRequest    `json:"pricing" form:"-"`
	Stock                StockRequest      `json:"stock" form:"-"`
	RequiresPrescription bool              `json:"requiresPrescription" form:"requiresPrescription"`
	Tags                 []string          `json:"tags" form:"tags"`
	Images               []string          `json:"images" form:"-"`
	Specifications       map[string]string `json:"specifications" form:"-"`
}

func (r ProductRequest) input() services.ProductInput {
	stock := models.Stock{Quantity: *r.Stock.Quantity, LowStockThreshold: 10, Unit: r.Stock.Unit}
	if r.Stock.LowStockThreshold != nil {
		stock.LowStockThreshold = *r.Stock.LowStockThreshold
	}
	return services.ProductInput{
		Name:                 strings.TrimSpace(r.Name),
		Description:          strings.TrimSpace(r.Description),
		Category:             r.Category,
		Manufacturer:         strings.TrimSpace(r.Manufacturer),
		Pricing:              models.Pricing{Price: *r.Pricing.Price, DiscountPrice: r.Pricing.DiscountPrice},
		Stock:                stock,
		RequiresPrescription: r.RequiresPrescription,
		Tags:                 r.Tags,
		Images:               r.Images,
		Specifications:       r.Specifications,
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// parseProduct binds and validates a JSON or multipart product body, then
// saves an uploaded image. A false return means the response has been
// written. The returned path is the saved file, empty when none.
func (h *ProductHandler) parseProduct(c *fiber.Ctx) (*ProductRequest, string, bool, error) {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "", false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	multipart := isMultipart(c)
	if multipart {
		fields := map[string]interface{}{
			"pricing":        &req.Pricing,
			"stock":          &req.Stock,
			"specifications": &req.Specifications,
		}
		for name, dst := range fields {
			raw := c.FormValue(name)
			if raw == "" {
				continue
			}
			if err := json.Unmarshal([]byte(raw), dst); err != nil {
				return nil, "", false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"message": "Validation failed",
					"errors":  fiber.Map{name: name + " must be valid JSON"},
				})
			}
		}
	}

	if err := h.validate.Struct(&req); err != nil {
		return nil, "", false, validationFailed(c, err)
	}
	if !multipart {
		return &req, "", true, nil
	}

	image, path, err := h.saveImage(c)
	if err != nil {
		return nil, "", false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Image upload failed",
			"error":   err.Error(),
		})
	}
	if image != "" {
		req.Images = []string{image}
	}
	return &req, path, true, nil
}

// saveImage stores the optional "image" file and returns its public URL
// and its path on disk.
func (h *ProductHandler) saveImage(c *fiber.Ctx) (string, string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		// no file part
		return "", "", nil
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !imageExtensions[ext] {
		return "", "", fmt.Errorf("unsupported image type %q", ext)
	}
	dir := filepath.Join(h.uploadDir, "products")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	name := uuid.New().String() + ext
	path := filepath.Join(dir, name)
	if err := c.SaveFile(file, path); err != nil {
		return "", "", fmt.Errorf("failed to save image: %w", err)
	}
	return "/uploads/products/" + name, path, nil
}

// discardUpload removes an image saved for a request the service rejected.
func discardUpload(c *fiber.Ctx, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil {
		logger.FromCtx(c.UserContext()).Warn("failed to remove rejected upload", zap.String("path", path), zap.Error(err))
	}
}

// HandleCreateProduct adds a product for the calling pharmacy.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	req, upload, ok, err := h.parseProduct(c)
	if !ok {
		return err
	}
	product, err := h.service.Create(c.UserContext(), middleware.CurrentUser(c), req.input())
	if err != nil {
		discardUpload(c, upload)
		return respondError(c, "Could not create product", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": product})
}

// HandleUpdateProduct replaces a product's fields; only its pharmacy may.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	req, upload, ok, err := h.parseProduct(c)
	if !ok {
		return err
	}
	product, err := h.service.Update(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), req.input())
	if err != nil {
		discardUpload(c, upload)
		return respondError(c, "Could not update product", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}

// HandleDeleteProduct deactivates a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), middleware.CurrentUser(c), c.Params("id")); err != nil {
		return respondError(c, "Could not delete product", err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Product deleted successfully"})
}

func (h *ProductHandler) HandleGetMyProducts(c *fiber.Ctx) error {
	page, err := h.service.MyProducts(c.UserContext(), middleware.CurrentUser(c), c.QueryBool("lowStock"), pagination(c))
	if err != nil {
		return respondError(c, "Could not retrieve products", err)
	}
	return paginated(c, page)
}

type StockUpdateRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

func (h *ProductHandler) HandleUpdateStock(c *fiber.Ctx) error {
	var req StockUpdateRequest
	if ok, err := bind(c, h.validate, &req); !ok {
		return err
	}
	product, err := h.service.UpdateStock(c.UserContext(), middleware.CurrentUser(c), c.Params("id"), *req.Quantity)
	if err != nil {
		return respondError(c, "Could not update stock", err)
	}
	return c.JSON(fiber.Map{"success": true, "data": product})
}
