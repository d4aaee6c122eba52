// Package mongosession backs session.Store with MongoDB, the persistence
// choice the retrieval pack uses uniformly for session/graph state
// (features/session/mongo, features/run/mongo in the teacher repo), storing
// one document per graph keyed by graph id with steps as a nested map.
package mongosession

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/veupathdb/strategy-delegate/delegate/session"
)

// graphDoc is the on-wire Mongo document shape for one graph.
type graphDoc struct {
	ID              string                  `bson:"_id"`
	Name            string                  `bson:"name"`
	SiteID          string                  `bson:"siteId"`
	RecordType      string                  `bson:"recordType"`
	CurrentStrategy string                  `bson:"currentStrategy"`
	Steps           map[string]stepDoc      `bson:"steps"`
	Roots           []string                `bson:"roots"`
	History         []session.HistoryEntry  `bson:"history"`
	LastStepID      string                  `bson:"lastStepId"`
}

type stepDoc struct {
	ID          string         `bson:"id"`
	DisplayName string         `bson:"displayName"`
	SearchName  string         `bson:"searchName"`
	RecordType  string         `bson:"recordType"`
	Parameters  map[string]any `bson:"parameters"`
	PrimaryID   string         `bson:"primaryId"`
	SecondaryID string         `bson:"secondaryId"`
	Operator    string         `bson:"operator"`
}

// Store backs session.Store with a Mongo collection, one document per graph.
type Store struct {
	collection *mongo.Collection
}

// New constructs a Store over the given collection (typically
// db.Collection("strategy_graphs")).
func New(collection *mongo.Collection) *Store {
	return &Store{collection: collection}
}

func (s *Store) GetGraph(ctx context.Context, id string) (*session.Graph, error) {
	var doc graphDoc
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, session.ErrGraphNotFound{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return fromDoc(doc), nil
}

func (s *Store) CreateGraph(ctx context.Context, name, graphID string) (*session.Graph, error) {
	existing, err := s.GetGraph(ctx, graphID)
	if err == nil {
		return existing, nil
	}
	if _, ok := err.(session.ErrGraphNotFound); !ok {
		return nil, err
	}
	doc := graphDoc{ID: graphID, Name: name, Steps: map[string]stepDoc{}}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return nil, err
	}
	return fromDoc(doc), nil
}

func (s *Store) RemoveGraph(ctx context.Context, id string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (s *Store) PutStep(ctx context.Context, graphID string, step *session.Step) error {
	upsert := true
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": graphID},
		bson.M{
			"$set": bson.M{
				"steps." + step.ID: toStepDoc(step),
				"lastStepId":       step.ID,
			},
			"$push": bson.M{
				"history": session.HistoryEntry{Action: "put_step", StepID: step.ID},
			},
		},
		&options.UpdateOneOptions{Upsert: &upsert},
	)
	return err
}

func (s *Store) SetMetadata(ctx context.Context, graphID, name, description string) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": graphID},
		bson.M{"$set": bson.M{"name": name, "currentStrategy": description}},
	)
	return err
}

func toStepDoc(s *session.Step) stepDoc {
	return stepDoc{
		ID: s.ID, DisplayName: s.DisplayName, SearchName: s.SearchName,
		RecordType: s.RecordType, Parameters: s.Parameters,
		PrimaryID: s.PrimaryID, SecondaryID: s.SecondaryID, Operator: s.Operator,
	}
}

func fromDoc(doc graphDoc) *session.Graph {
	g := &session.Graph{
		ID: doc.ID, Name: doc.Name, SiteID: doc.SiteID, RecordType: doc.RecordType,
		CurrentStrategy: doc.CurrentStrategy, LastStepID: doc.LastStepID,
		Steps:   make(map[string]*session.Step, len(doc.Steps)),
		Roots:   make(map[string]struct{}, len(doc.Roots)),
		History: doc.History,
	}
	for id, sd := range doc.Steps {
		g.Steps[id] = &session.Step{
			ID: sd.ID, DisplayName: sd.DisplayName, SearchName: sd.SearchName,
			RecordType: sd.RecordType, Parameters: sd.Parameters,
			PrimaryID: sd.PrimaryID, SecondaryID: sd.SecondaryID, Operator: sd.Operator,
		}
	}
	for _, r := range doc.Roots {
		g.Roots[r] = struct{}{}
	}
	return g
}
