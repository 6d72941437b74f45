package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product mirrors the `products` table with the JSON columns decoded.  Image
// is stored as a JSON array of URLs and MoreDetails as a free-form JSON
// object describing variants.
type Product struct {
	ID          uint64          `json:"id"`
	Name        string          `json:"name"`
	Image       []string        `json:"image"`
	CategoryID  uint64          `json:"category_id"`
	Unit        string          `json:"unit"`
	Stock       int             `json:"stock"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Description string          `json:"description"`
	MoreDetails ProductDetails  `json:"more_details"`
	Publish     bool            `json:"publish"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductDetails is the typed view over products.more_details.  Keys the
// storefront does not know about are kept in Extra and written back
// unchanged.
type ProductDetails struct {
	Colors              []string                    `json:"colors,omitempty"`
	Sizes               []string                    `json:"sizes,omitempty"`
	ColorImages         map[string][]string         `json:"colorImages,omitempty"`
	Inventory           map[string]VariantInventory `json:"inventory,omitempty"`
	Bundle              []json.RawMessage           `json:"bundle,omitempty"`
	Material            string                      `json:"material,omitempty"`
	AmazonAffiliateLink string                      `json:"amazon_affiliate_link,omitempty"`
	Extra               map[string]json.RawMessage  `json:"-"`
}

// VariantInventory holds the stock of one color: either a single count
// (products without sizes) or a count per size.
type VariantInventory struct {
	Total  *int
	BySize map[string]int
}

func (v *VariantInventory) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		v.Total = &n
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n = int(f)
		v.Total = &n
		return nil
	}
	return json.Unmarshal(b, &v.BySize)
}

func (v VariantInventory) MarshalJSON() ([]byte, error) {
	if v.Total != nil {
		return json.Marshal(*v.Total)
	}
	if v.BySize == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v.BySize)
}

var knownDetailKeys = []string{"colors", "sizes", "colorImages", "inventory", "bundle", "material", "amazon_affiliate_link"}

type productDetailsAlias ProductDetails

func (d *ProductDetails) UnmarshalJSON(b []byte) error {
	var a productDetailsAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}
	for _, k := range knownDetailKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		a.Extra = all
	}
	*d = ProductDetails(a)
	return nil
}

func (d ProductDetails) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(productDetailsAlias(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, taken := out[k]; !taken {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Tracked reports whether the product declares per-variant stock at all.
func (d ProductDetails) Tracked() bool { return len(d.Inventory) > 0 }

// VariantStock returns the stock available for a color/size selection using
// the same rules the storefront applies before enabling add-to-cart: a
// color+size pair reads the exact cell, a color on a size-less product reads
// its single count, and a color alone on a sized product sums its sizes.
// ok is false when the product does not track variants or no color was
// chosen, in which case only the product-level stock applies.
func (d ProductDetails) VariantStock(color, size string) (stock int, ok bool) {
	if !d.Tracked() || color == "" {
		return 0, false
	}
	inv, found := d.Inventory[color]
	if !found {
		return 0, true
	}
	if size != "" {
		return inv.BySize[size], true
	}
	if inv.Total != nil {
		return *inv.Total, true
	}
	total := 0
	for _, n := range inv.BySize {
		total += n
	}
	return total, true
}

// ImagesFor returns the color specific gallery when one exists, otherwise
// the product's default images.
func (p Product) ImagesFor(color string) []string {
	if imgs := p.MoreDetails.ColorImages[color]; len(imgs) > 0 {
		return imgs
	}
	return p.Image
}

// DecodeImages parses the products.image column.  Older rows hold a bare URL
// or a JSON string instead of an array; both are normalized to a slice.
func DecodeImages(raw []byte) []string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal([]byte(s), &list); err == nil {
		return list
	}
	var one string
	if err := json.Unmarshal([]byte(s), &one); err == nil {
		if one == "" {
			return []string{}
		}
		return []string{one}
	}
	return []string{s}
}

// DecodeDetails parses the products.more_details column.  Empty or invalid
// content yields zero-value details rather than an error so one bad row
// never hides the whole catalogue.
func DecodeDetails(raw []byte) ProductDetails {
	var d ProductDetails
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return d
	}
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return ProductDetails{}
	}
	return d
}
