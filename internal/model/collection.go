package model

// Collection is the dispatch key used by search, upload and image serving.
// The values are the plural path segments clients send.
type Collection string

const (
	CollectionUsers     Collection = "usuarios"
	CollectionHospitals Collection = "hospitales"
	CollectionDoctors   Collection = "medicos"
)

// Collections lists every valid kind in response order.
var Collections = []Collection{CollectionHospitals, CollectionDoctors, CollectionUsers}

// ParseCollection returns the Collection named by s and whether it is valid.
func ParseCollection(s string) (Collection, bool) {
	switch c := Collection(s); c {
	case CollectionUsers, CollectionHospitals, CollectionDoctors:
		return c, true
	}
	return "", false
}
