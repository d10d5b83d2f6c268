package domain

// DefaultVariant is the single stock pool key for products without sizes.
const DefaultVariant = "default"

// initialUnits is the seed quantity per variant for a newly tracked product.
const initialUnits = 5

// SizeSets enumerates the variant keys of sized categories.
// Category 1 is clothing, category 4 is shoes; every other category is
// tracked under a single default pool.
var SizeSets = map[int][]string{
	1: {"XS", "S", "M", "L", "XL"},
	4: {"38", "39", "40", "41", "42"},
}

// Stock maps a variant key to its available unit count.
// An absent key means zero units available.
type Stock map[string]int

// IsSized reports whether the category carries an enumerated size set.
func IsSized(categoryID int) bool {
	_, ok := SizeSets[categoryID]
	return ok
}

// VariantKeys returns the stock pool keys applicable to a category.
func VariantKeys(categoryID int) []string {
	if sizes, ok := SizeSets[categoryID]; ok {
		out := make([]string, len(sizes))
		copy(out, sizes)
		return out
	}
	return []string{DefaultVariant}
}

// SeedStock builds the initial stock record for a product of the given
// category, with the fixed initial quantity per applicable variant.
func SeedStock(categoryID int) Stock {
	s := make(Stock)
	for _, key := range VariantKeys(categoryID) {
		s[key] = initialUnits
	}
	return s
}

// Available returns the unit count for a variant, zero when absent.
func (s Stock) Available(variant string) int {
	if s == nil {
		return 0
	}
	return s[variant]
}

// Clone returns an independent copy of the stock record.
func (s Stock) Clone() Stock {
	if s == nil {
		return nil
	}
	out := make(Stock, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
