package models

import (
	"sort"
	"strings"
)

type Product string

const (
	ProductMitraguna   Product = "mitraguna"
	ProductHasanahCard Product = "hasanahcard"
	ProductGriya       Product = "griya"
	ProductOto         Product = "oto"
	ProductPensiun     Product = "pensiun"
	ProductPrapensiun  Product = "prapensiun"
)

// CanonicalProducts is the declared product priority order. Ranking ties
// are broken by position in this list.
var CanonicalProducts = []Product{
	ProductMitraguna,
	ProductHasanahCard,
	ProductGriya,
	ProductOto,
	ProductPensiun,
	ProductPrapensiun,
}

// PayrollProduct is only offered to customers with payroll at the bank.
const PayrollProduct = ProductMitraguna

var productPriority = func() map[Product]int {
	m := make(map[Product]int, len(CanonicalProducts))
	for i, p := range CanonicalProducts {
		m[p] = i
	}
	return m
}()

// ParseProduct matches a product identifier case-insensitively.
func ParseProduct(s string) (Product, bool) {
	p := Product(strings.ToLower(strings.TrimSpace(s)))
	_, ok := productPriority[p]
	return p, ok
}

// Priority is the tie-break position of p. Unknown products sort last.
func (p Product) Priority() int {
	if i, ok := productPriority[p]; ok {
		return i
	}
	return len(CanonicalProducts)
}

func (p Product) Known() bool {
	_, ok := productPriority[p]
	return ok
}

// ProductSet is an unordered set of product identifiers. It may hold
// identifiers outside the scored product list.
type ProductSet map[Product]struct{}

func NewProductSet(products ...Product) ProductSet {
	s := make(ProductSet, len(products))
	for _, p := range products {
		s[p] = struct{}{}
	}
	return s
}

func (s ProductSet) Has(p Product) bool {
	_, ok := s[p]
	return ok
}

func (s ProductSet) Len() int { return len(s) }

// Sorted returns the members in canonical order, unknown ones last by name.
func (s ProductSet) Sorted() []Product {
	out := make([]Product, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Priority(), out[j].Priority()
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}
