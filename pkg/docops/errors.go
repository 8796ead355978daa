package docops

import (
	"errors"

	"github.com/syntrixbase/mongokit/pkg/model"
	"go.mongodb.org/mongo-driver/mongo"
)

// storeError reduces a driver error to the most specific message it carries:
// the first write error, then the write concern error, then the command
// error, then the error text. Cancellation becomes model.ErrCanceled.
func storeError(op string, err error, result interface{}) error {
	if err == nil {
		return nil
	}
	if model.IsCanceled(err) {
		return model.ErrCanceled
	}
	var se *model.StoreError
	if errors.As(err, &se) {
		return err
	}

	se = &model.StoreError{Op: op, Message: err.Error(), Result: result, Err: err}

	var bwe mongo.BulkWriteException
	var we mongo.WriteException
	var ce mongo.CommandError
	switch {
	case errors.As(err, &bwe):
		if len(bwe.WriteErrors) > 0 {
			se.Code, se.Message = bwe.WriteErrors[0].Code, bwe.WriteErrors[0].Message
		} else if bwe.WriteConcernError != nil {
			se.Code, se.Message = bwe.WriteConcernError.Code, bwe.WriteConcernError.Message
		}
	case errors.As(err, &we):
		if len(we.WriteErrors) > 0 {
			se.Code, se.Message = we.WriteErrors[0].Code, we.WriteErrors[0].Message
		} else if we.WriteConcernError != nil {
			se.Code, se.Message = we.WriteConcernError.Code, we.WriteConcernError.Message
		}
	case errors.As(err, &ce):
		se.Code = int(ce.Code)
		if ce.Message != "" {
			se.Message = ce.Message
		}
	}
	return se
}

// bulkFailures lists the failed operations of a bulk write error.
func bulkFailures(err error) []model.BulkFailure {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return nil
	}
	out := make([]model.BulkFailure, len(bwe.WriteErrors))
	for i, we := range bwe.WriteErrors {
		out[i] = model.BulkFailure{Index: we.Index, Code: we.Code, Message: we.Message}
	}
	return out
}
