package cms

import "guesthouse/internal/domain"

// Published documents only; drafts live under the drafts.** id path.
const published = `!(_id in path("drafts.**"))`

const categoryProjection = `"category": category->{"key": key.current, "rank": orderRank, title, description}`

// queries holds one GROQ query per synced document type. Results are ordered
// by the editorial rank so item order inside a category is the CMS order.
var queries = map[domain.DocType]string{
	domain.DocHouse: `*[_type == "house" && ` + published + `] | order(orderRank asc){
  _id, _rev, "slug": slug.current, "rank": orderRank,
  name, summary, description, address, "coverImage": coverImage.asset->url
}`,
	domain.DocGalleryImage: `*[_type == "galleryImage" && ` + published + `] | order(orderRank asc){
  _id, _rev, "house": house->slug.current, "url": image.asset->url, alt,
  ` + categoryProjection + `
}`,
	domain.DocAmenity: `*[_type == "amenity" && ` + published + `] | order(orderRank asc){
  _id, _rev, "house": house->slug.current, icon, name,
  ` + categoryProjection + `
}`,
	domain.DocPricingPlan: `*[_type == "pricingPlan" && ` + published + `] | order(orderRank asc){
  _id, _rev, "house": house->slug.current, label, amount, currency, unit,
  ` + categoryProjection + `
}`,
	domain.DocFAQ: `*[_type == "faq" && ` + published + `] | order(orderRank asc){
  _id, _rev, question, answer,
  ` + categoryProjection + `
}`,
}

// QueryFor returns the GROQ query used for t.
func QueryFor(t domain.DocType) (string, bool) {
	q, ok := queries[t]
	return q, ok
}
