package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/zatekoja/reviewsearch/internal/domain/entities"
	"github.com/zatekoja/reviewsearch/internal/domain/providers"
	apperrors "github.com/zatekoja/reviewsearch/pkg/errors"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// lookupPath resolves a dotted path through nested objects.
func lookupPath(src map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = src
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

// numberAt returns the number at path, or 0 when it is absent or malformed.
// Used for tie-breaking only, where a bad value must not drop the document.
func numberAt(src map[string]interface{}, path string) float64 {
	v, ok := lookupPath(src, path)
	if !ok {
		return 0
	}
	f, err := toFloat(v)
	if err != nil {
		return 0
	}
	return f
}

// toFloat accepts numbers, numeric strings, and comma-grouped strings with an
// optional currency sign or suffix ("12,900", "12,900원"). An empty string is 0.
func toFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		return t.Float64()
	case string:
		raw := strings.TrimSpace(t)
		if raw == "" {
			return 0, nil
		}
		s := strings.TrimFunc(strings.ReplaceAll(raw, ",", ""), func(r rune) bool {
			return !unicode.IsDigit(r) && r != '.' && r != '-'
		})
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func toInt(v interface{}) (int64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return int64(f), nil
}

// toString renders scalars as strings. Whole numbers print without a
// fractional part so numeric identifiers stay stable.
func toString(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unexpected type %T", v)
	}
}

func toTime(v interface{}) (*time.Time, error) {
	s, err := toString(v)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", s)
}

func toStrings(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if t == "" {
			return []string{}, nil
		}
		return []string{t}, nil
	case []string:
		return t, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, err := toString(item)
			if err != nil {
				return nil, err
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

// fieldReader collects the first conversion failure of a document.
type fieldReader struct {
	docID string
	src   map[string]interface{}
	err   error
}

func (r *fieldReader) fail(field string, err error) {
	if r.err == nil {
		r.err = apperrors.NewConversionError(r.docID, field, err)
	}
}

func (r *fieldReader) str(path string) string {
	v, _ := lookupPath(r.src, path)
	s, err := toString(v)
	if err != nil {
		r.fail(path, err)
	}
	return s
}

func (r *fieldReader) float(path string) float64 {
	v, _ := lookupPath(r.src, path)
	f, err := toFloat(v)
	if err != nil {
		r.fail(path, err)
	}
	return f
}

func (r *fieldReader) integer(path string) int64 {
	v, _ := lookupPath(r.src, path)
	n, err := toInt(v)
	if err != nil {
		r.fail(path, err)
	}
	return n
}

func (r *fieldReader) timestamp(path string) *time.Time {
	v, _ := lookupPath(r.src, path)
	t, err := toTime(v)
	if err != nil {
		r.fail(path, err)
	}
	return t
}

func (r *fieldReader) list(path string) []string {
	v, _ := lookupPath(r.src, path)
	s, err := toStrings(v)
	if err != nil {
		r.fail(path, err)
	}
	return s
}

// ReviewIdentity is review_id, falling back to the store id.
func ReviewIdentity(doc providers.RawDocument) (string, bool) {
	return identity(doc, "review_id")
}

// ProductIdentity is product_no, then product_id, then the store id.
func ProductIdentity(doc providers.RawDocument) (string, bool) {
	return identity(doc, productNoField, "product_id")
}

func identity(doc providers.RawDocument, fields ...string) (string, bool) {
	for _, f := range fields {
		if v, ok := lookupPath(doc.Source, f); ok {
			if s, err := toString(v); err == nil && s != "" {
				return s, true
			}
		}
	}
	return doc.ID, doc.ID != ""
}

// CoerceReview converts a review source document. Absent fields take zero
// values; a present but malformed field is a CONVERSION error.
func CoerceReview(id string, src map[string]interface{}) (*entities.Review, error) {
	r := &fieldReader{docID: id, src: src}
	review := &entities.Review{
		ReviewID:     id,
		ProductNo:    r.str(productNoField),
		MemberNo:     r.integer("member_no"),
		ProductName:  r.str("product_name"),
		ProductBrand: r.str("product_brand"),
		Rating:       r.float(reviewRatingField),
		ReviewText:   r.str(reviewTextField),
		ReviewDate:   r.timestamp("review_date"),
		HelpfulCount: int(r.integer(reviewHelpfulField)),
		Sentiment:    r.str("sentiment"),
		CreatedAt:    r.timestamp("created_at"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return review, nil
}

// CoerceProduct converts a product source document into the canonical
// projection, substituting defaults for absent fields.
func CoerceProduct(id string, src map[string]interface{}) (*entities.Product, error) {
	r := &fieldReader{docID: id, src: src}
	product := &entities.Product{
		ProductNo:   id,
		ProductID:   r.str("product_id"),
		Name:        r.str("product_name"),
		Brand:       r.str("brand"),
		Price:       r.float("price"),
		Description: r.str("description"),
		ImageURL:    r.str("image_url"),
		Statistics: entities.ProductStatistics{
			TotalReviews:   int(r.integer("statistics.total_reviews")),
			AverageRating:  r.float("statistics.average_rating"),
			ReviewVelocity: r.float("statistics.review_velocity"),
		},
		Tags:      r.list("tags"),
		Status:    r.str("status"),
		CreatedAt: r.timestamp("created_at"),
		UpdatedAt: r.timestamp("updated_at"),
	}
	if no := r.str(productNoField); no != "" {
		product.ProductNo = no
	}
	if product.Status == "" {
		product.Status = entities.DefaultProductStatus
	}

	category, err := coerceCategory(src["category"])
	if err != nil {
		r.fail("category", err)
	}
	product.Category = category

	if r.err != nil {
		return nil, r.err
	}
	return product, nil
}

// coerceCategory accepts the nested category object or a bare category name.
func coerceCategory(v interface{}) (entities.Category, error) {
	switch t := v.(type) {
	case nil:
		return entities.Category{}, nil
	case string:
		return entities.Category{CategoryName: t}, nil
	case map[string]interface{}:
		var c entities.Category
		var err error
		strs := []struct {
			dst   *string
			field string
		}{
			{&c.CategoryID, "category_id"},
			{&c.CategoryName, "category_name"},
			{&c.CategoryCode, "category_code"},
			{&c.ParentCategoryID, "parent_category_id"},
		}
		for _, f := range strs {
			if *f.dst, err = toString(t[f.field]); err != nil {
				return entities.Category{}, fmt.Errorf("%s: %w", f.field, err)
			}
		}
		depth, err := toInt(t["depth"])
		if err != nil {
			return entities.Category{}, fmt.Errorf("depth: %w", err)
		}
		c.Depth = int(depth)
		return c, nil
	default:
		return entities.Category{}, fmt.Errorf("unexpected type %T", v)
	}
}
