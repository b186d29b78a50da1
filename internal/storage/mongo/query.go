package mongo

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/dinefind/place-crawler/internal/poi"
)

// buildQuery translates match criteria into a Mongo filter. Conditions
// are AND-combined; the keyword group ORs name substring, tag and
// category matches.
func buildQuery(criteria poi.Criteria) bson.M {
	var conditions []bson.M

	if len(criteria.Categories) > 0 {
		conditions = append(conditions, bson.M{"categories": bson.M{"$in": criteria.Categories}})
	}
	if len(criteria.PriceTiers) > 0 {
		tiers := make([]string, 0, len(criteria.PriceTiers))
		for _, t := range criteria.PriceTiers {
			tiers = append(tiers, string(t))
		}
		conditions = append(conditions, bson.M{"price_tier": bson.M{"$in": tiers}})
	}
	if criteria.MinRating != nil {
		conditions = append(conditions, bson.M{"rating": bson.M{"$gte": *criteria.MinRating}})
	}
	if len(criteria.Keywords) > 0 {
		var or []bson.M
		for _, kw := range criteria.Keywords {
			or = append(or, bson.M{"name": bson.M{
				"$regex":   regexp.QuoteMeta(kw),
				"$options": "i",
			}})
		}
		or = append(or,
			bson.M{"tags": bson.M{"$in": criteria.Keywords}},
			bson.M{"categories": bson.M{"$in": criteria.Keywords}},
		)
		conditions = append(conditions, bson.M{"$or": or})
	}
	if criteria.Near != nil {
		conditions = append(conditions, bson.M{"location": bson.M{
			"$near": bson.M{
				"$geometry":    criteria.Near.Center,
				"$maxDistance": criteria.Near.RadiusMeters,
			},
		}})
	}

	if len(conditions) == 0 {
		return bson.M{}
	}
	return bson.M{"$and": conditions}
}
