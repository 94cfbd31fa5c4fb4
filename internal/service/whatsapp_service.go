package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"forest-fashion/internal/models"

	"github.com/leekchan/accounting"
	"github.com/shopspring/decimal"
)

const notSpecified = "Not specified"

// WhatsAppService prepares manual orders sent through WhatsApp. Staff
// confirm stock by hand, so nothing is reserved here.
type WhatsAppService struct {
	products ProductRepository
	profiles ProfileRepository
	number   string
	money    accounting.Accounting
}

func NewWhatsAppService(products ProductRepository, profiles ProfileRepository, number, currencySymbol string) *WhatsAppService {
	return &WhatsAppService{
		products: products,
		profiles: profiles,
		number:   number,
		money:    accounting.Accounting{Symbol: currencySymbol, Precision: 2, Thousand: ",", Decimal: "."},
	}
}

type WhatsAppOrderRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	Quantity  int    `json:"quantity"`
}

type WhatsAppOrder struct {
	WhatsAppURL  string `json:"whatsappUrl"`
	CustomerInfo string `json:"customerInfo"`
}

// Prepare builds the order message from the product and the caller's
// profile and returns a wa.me link carrying it.
func (s *WhatsAppService) Prepare(ctx context.Context, userID string, req WhatsAppOrderRequest) (*WhatsAppOrder, error) {
	product, err := s.products.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return nil, orNotFound(err, "Product not found")
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, "Please complete your profile first")
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	msg := s.message(product, profile, req.Size, req.Color, quantity)

	return &WhatsAppOrder{
		WhatsAppURL:  "https://wa.me/" + s.number + "?text=" + encodeURIComponent(msg),
		CustomerInfo: msg,
	}, nil
}

func (s *WhatsAppService) message(p *models.Product, profile *models.Profile, size, color string, quantity int) string {
	total := p.Price.Mul(decimal.NewFromInt(int64(quantity)))
	addr := profile.Address

	var b strings.Builder
	fmt.Fprintf(&b, "*Forest Fashion - New Order*\n\n")
	fmt.Fprintf(&b, "*Customer:*\n")
	fmt.Fprintf(&b, "Name: %s %s\n", profile.FirstName, profile.LastName)
	fmt.Fprintf(&b, "Email: %s\n", profile.Email)
	fmt.Fprintf(&b, "Phone: %s\n\n", profile.Phone)
	fmt.Fprintf(&b, "*Delivery address:*\n%s\n%s, %s\n%s\n%s\n\n", addr.Street, addr.City, addr.State, addr.ZipCode, addr.Country)
	fmt.Fprintf(&b, "*Product:*\n")
	fmt.Fprintf(&b, "Product: %s\n", p.Name)
	fmt.Fprintf(&b, "Price: %s\n", s.format(p.Price))
	fmt.Fprintf(&b, "Size: %s\n", orDefault(size, notSpecified))
	fmt.Fprintf(&b, "Color: %s\n", orDefault(color, notSpecified))
	fmt.Fprintf(&b, "Quantity: %d\n\n", quantity)
	fmt.Fprintf(&b, "*Order total:* %s\n\n", s.format(total))
	fmt.Fprintf(&b, "---\nSent from the Forest Fashion website")
	return b.String()
}

// format works on a copy: Accounting initializes itself on every call.
func (s *WhatsAppService) format(d decimal.Decimal) string {
	money := s.money
	return money.FormatMoneyDecimal(d)
}

// encodeURIComponent escapes like the browser function of the same name:
// spaces become %20, not +.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
