package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/syntrixbase/mongokit/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
)

// readArg returns the text of a JSON flag. "@path" reads a file and "-"
// reads stdin.
func readArg(value string, stdin io.Reader) ([]byte, error) {
	switch {
	case value == "-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(value, "@"):
		return os.ReadFile(value[1:])
	}
	return []byte(value), nil
}

// parseD decodes an extended JSON object keeping its key order. An empty
// value decodes to nil.
func parseD(flag string, data []byte) (model.D, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return nil, model.Errorf(model.ErrValidation, "--%s is not a JSON object: %v", flag, err)
	}
	return model.FromBSON(doc).(model.D), nil
}

func parseM(flag string, data []byte) (model.M, error) {
	d, err := parseD(flag, data)
	if err != nil || d == nil {
		return nil, err
	}
	return d.Map(), nil
}

// parseDocuments decodes an extended JSON array of objects.
func parseDocuments(flag string, data []byte) ([]model.M, error) {
	var wrapper struct {
		Items bson.A `bson:"items"`
	}
	body := append([]byte(`{"items":`), data...)
	body = append(body, '}')
	if err := bson.UnmarshalExtJSON(body, false, &wrapper); err != nil {
		return nil, model.Errorf(model.ErrValidation, "--%s is not a JSON array: %v", flag, err)
	}
	docs := make([]model.M, len(wrapper.Items))
	for i, item := range wrapper.Items {
		d, ok := item.(bson.D)
		if !ok {
			return nil, model.Errorf(model.ErrValidation, "--%s element %d is not an object", flag, i)
		}
		docs[i] = model.FromBSON(d).(model.D).Map()
	}
	return docs, nil
}

// parseValue decodes an extended JSON value, e.g. 42 or {"$oid": "..."}.
// Anything that is not JSON is taken as a plain string.
func parseValue(value string) interface{} {
	var wrapper struct {
		V interface{} `bson:"v"`
	}
	if err := bson.UnmarshalExtJSON([]byte(`{"v":`+value+`}`), false, &wrapper); err != nil {
		return value
	}
	return model.FromBSON(wrapper.V)
}

// writeDocument prints one document as relaxed extended JSON on its own line.
func writeDocument(w io.Writer, doc interface{}) error {
	data, err := bson.MarshalExtJSON(model.ToBSON(doc), false, false)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeDocuments(w io.Writer, docs []model.M) error {
	for _, doc := range docs {
		if err := writeDocument(w, doc); err != nil {
			return err
		}
	}
	return nil
}

// writeResult prints a write or bulk result.
func writeResult(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
