package domain

// DocType names a CMS document type.
type DocType string

const (
	DocHouse        DocType = "house"
	DocGalleryImage DocType = "galleryImage"
	DocAmenity      DocType = "amenity"
	DocPricingPlan  DocType = "pricingPlan"
	DocFAQ          DocType = "faq"
)

// DocTypes lists every synced type, houses first.
var DocTypes = []DocType{DocHouse, DocGalleryImage, DocAmenity, DocPricingPlan, DocFAQ}

// Document is a mapped CMS document as stored. Payload is the JSON of the
// typed value (House, CategorizedItem[GalleryImage], ...).
type Document struct {
	ID       string
	Type     DocType
	House    *string // owning house slug, nil for site-wide documents
	Rev      string
	Position int // index in the CMS result, preserves editorial order
	Payload  []byte
}

type House struct {
	Slug        string         `json:"slug"`
	Rank        *string        `json:"rank"`
	Name        LocalizedValue `json:"name"`
	Summary     LocalizedValue `json:"summary,omitempty"`
	Description LocalizedValue `json:"description,omitempty"`
	Address     string         `json:"address,omitempty"`
	CoverImage  string         `json:"coverImage,omitempty"`
}

type GalleryImage struct {
	ID    string         `json:"id"`
	House string         `json:"house"`
	URL   string         `json:"url"`
	Alt   LocalizedValue `json:"alt,omitempty"`
}

type Amenity struct {
	ID    string         `json:"id"`
	House string         `json:"house,omitempty"` // empty: shared by every house
	Icon  string         `json:"icon,omitempty"`
	Name  LocalizedValue `json:"name"`
}

type PricingPlan struct {
	ID       string         `json:"id"`
	House    string         `json:"house"`
	Label    LocalizedValue `json:"label"`
	Amount   int            `json:"amount"`
	Currency string         `json:"currency"`
	Unit     LocalizedValue `json:"unit,omitempty"` // "per month", "per night"...
}

type FAQ struct {
	ID       string         `json:"id"`
	Question LocalizedValue `json:"question"`
	Answer   LocalizedValue `json:"answer"`
}

// ---- localized read models ----

type HouseView struct {
	Slug        string  `json:"slug"`
	Name        *string `json:"name"`
	Summary     *string `json:"summary"`
	Description *string `json:"description,omitempty"`
	Address     string  `json:"address,omitempty"`
	CoverImage  string  `json:"coverImage,omitempty"`
	Language    string  `json:"language"`
}

type GroupView[T any] struct {
	Key         string  `json:"key"`
	Title       *string `json:"title"`
	Description *string `json:"description,omitempty"`
	Items       []T     `json:"items"`
}

type ImageView struct {
	ID  string  `json:"id"`
	URL string  `json:"url"`
	Alt *string `json:"alt"`
}

type AmenityView struct {
	ID   string  `json:"id"`
	Icon string  `json:"icon,omitempty"`
	Name *string `json:"name"`
}

type PriceView struct {
	ID       string  `json:"id"`
	Label    *string `json:"label"`
	Amount   int     `json:"amount"`
	Currency string  `json:"currency"`
	Unit     *string `json:"unit,omitempty"`
}

type FAQView struct {
	ID       string  `json:"id"`
	Question *string `json:"question"`
	Answer   *string `json:"answer"`
}

type HouseDetailView struct {
	HouseView
	Gallery   []GroupView[ImageView]   `json:"gallery"`
	Amenities []GroupView[AmenityView] `json:"amenities"`
	Pricing   []GroupView[PriceView]   `json:"pricing"`
}

// LocalizeGroups turns grouped items into localized views.
func LocalizeGroups[T, V any](groups []CategoryGroup[T], locale, fallback string, view func(T) V) []GroupView[V] {
	out := make([]GroupView[V], 0, len(groups))
	for _, g := range groups {
		gv := GroupView[V]{
			Key:         g.Key,
			Title:       g.Title.ResolvePtr(locale, fallback),
			Description: g.Description.ResolvePtr(locale, fallback),
			Items:       make([]V, 0, len(g.Items)),
		}
		for _, it := range g.Items {
			gv.Items = append(gv.Items, view(it.Value))
		}
		out = append(out, gv)
	}
	return out
}
