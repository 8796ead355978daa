package model

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// M is an unordered document: filters, projections, update specs and
// pipeline stages.
//
// Values are primitives, M, D, A, or driver primitive values such as
// primitive.ObjectID and primitive.DateTime.
type M map[string]interface{}

// E is one element of an ordered document.
type E struct {
	Key   string
	Value interface{}
}

// D is an ordered document. Use it where key order matters, e.g. sort specs.
type D []E

// A is an array value.
type A []interface{}

// IDField is the primary key of every stored document.
const IDField = "_id"

func (doc M) GetID() interface{} {
	return doc[IDField]
}

func (doc M) HasKey(key string) bool {
	_, exists := doc[key]
	return exists
}

// Keys returns the keys of an ordered document in order.
func (d D) Keys() []string {
	keys := make([]string, len(d))
	for i, e := range d {
		keys[i] = e.Key
	}
	return keys
}

// Map returns d as an unordered document.
func (d D) Map() M {
	m := make(M, len(d))
	for _, e := range d {
		m[e.Key] = e.Value
	}
	return m
}

// ToBSON converts a value built from M, D and A (at any depth) into the
// driver's bson.M, bson.D and bson.A. Other values are returned unchanged.
func ToBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case M:
		return toBSONMap(val)
	case map[string]interface{}:
		return toBSONMap(val)
	case D:
		out := make(bson.D, len(val))
		for i, e := range val {
			out[i] = bson.E{Key: e.Key, Value: ToBSON(e.Value)}
		}
		return out
	case A:
		return toBSONArray(val)
	case []interface{}:
		return toBSONArray(val)
	case []M:
		out := make(bson.A, len(val))
		for i, item := range val {
			out[i] = toBSONMap(item)
		}
		return out
	default:
		return v
	}
}

// FilterBSON converts a filter, defaulting to the match-all document.
func FilterBSON(filter M) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return toBSONMap(filter)
}

func toBSONMap(m map[string]interface{}) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = ToBSON(v)
	}
	return out
}

func toBSONArray(a []interface{}) bson.A {
	out := make(bson.A, len(a))
	for i, item := range a {
		out[i] = ToBSON(item)
	}
	return out
}

// FromBSON converts driver documents back into M, D and A.
func FromBSON(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return fromBSONMap(val)
	case map[string]interface{}:
		return fromBSONMap(val)
	case bson.D:
		out := make(D, len(val))
		for i, e := range val {
			out[i] = E{Key: e.Key, Value: FromBSON(e.Value)}
		}
		return out
	case bson.A:
		out := make(A, len(val))
		for i, item := range val {
			out[i] = FromBSON(item)
		}
		return out
	case []interface{}:
		out := make(A, len(val))
		for i, item := range val {
			out[i] = FromBSON(item)
		}
		return out
	default:
		return v
	}
}

// DocumentFromBSON converts a decoded driver document into M.
func DocumentFromBSON(doc bson.M) M {
	if doc == nil {
		return nil
	}
	return fromBSONMap(doc)
}

func fromBSONMap(m map[string]interface{}) M {
	out := make(M, len(m))
	for k, v := range m {
		out[k] = FromBSON(v)
	}
	return out
}

// NormalizeID turns a 24 character hex string into an ObjectID. Any other
// value is returned unchanged.
func NormalizeID(id interface{}) interface{} {
	if s, ok := id.(string); ok && len(s) == 24 {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			return oid
		}
	}
	return id
}
