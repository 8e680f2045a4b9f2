package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"meal-journal/internal/models"
)

func mockStore(mt *mtest.T) *MongoStore {
	return &MongoStore{DBClient: mt.Client, database: mt.DB.Name(), timeout: 5}
}

func TestMongoStoreErrorMapping(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ns := "meal_journal." + COLLECTION_NAME_PARTICIPANT_RECORDS
	doc := models.Document{models.SavedFoodsKey: json.RawMessage(`[]`)}

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		if err := mockStore(mt).Create(context.Background(), "4233", doc); err != nil {
			mt.Errorf("Create: %v", err)
		}
	})

	mt.Run("create duplicate", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))
		if err := mockStore(mt).Create(context.Background(), "4233", doc); !errors.Is(err, ErrConflict) {
			mt.Errorf("Create = %v, want ErrConflict", err)
		}
	})

	mt.Run("read", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "4233"},
			{Key: "document", Value: `{"savedFoods":[],"2024-05-01":{"lunch":{"food":"soup","questions":{}}}}`},
		}))
		got, err := mockStore(mt).Read(context.Background(), "4233")
		if err != nil {
			mt.Fatalf("Read: %v", err)
		}
		if string(got["2024-05-01"]) != `{"lunch":{"food":"soup","questions":{}}}` {
			mt.Errorf("day = %s", got["2024-05-01"])
		}
	})

	mt.Run("read missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		if _, err := mockStore(mt).Read(context.Background(), "4233"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Read = %v, want ErrNotFound", err)
		}
	})

	mt.Run("replace", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		if err := mockStore(mt).Replace(context.Background(), "4233", doc); err != nil {
			mt.Errorf("Replace: %v", err)
		}
	})

	mt.Run("replace missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		if err := mockStore(mt).Replace(context.Background(), "4233", doc); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Replace = %v, want ErrNotFound", err)
		}
	})

	mt.Run("delete missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		if err := mockStore(mt).Delete(context.Background(), "4233"); !errors.Is(err, ErrNotFound) {
			mt.Errorf("Delete = %v, want ErrNotFound", err)
		}
	})

	mt.Run("server error", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 0},
			{Key: "code", Value: 2},
			{Key: "errmsg", Value: "bad value"},
		})
		if err := mockStore(mt).Replace(context.Background(), "4233", doc); !errors.Is(err, ErrTransient) {
			mt.Errorf("Replace = %v, want ErrTransient", err)
		}
	})
}
