// Package mongo provides a MongoDB-backed store.EventLog, suitable as the
// durable backend for the audit trail and general event export (spec.md
// §6). Grounded on the teacher's registry/store/mongo package: a thin
// wrapper over a *mongo.Collection using upsert/findOneAndUpdate for the
// monotonic sequence counter.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/goa-design/kernel/store"
)

// EventLog is a store.EventLog backed by a MongoDB collection. Sequence
// numbers are assigned via a single counter document so Append is
// monotonic even under concurrent writers.
type EventLog struct {
	entries *mongo.Collection
	counter *mongo.Collection
	name    string
}

type entryDocument struct {
	SeqNo   int64  `bson:"_id"`
	Payload []byte `bson:"payload"`
}

type counterDocument struct {
	Name string `bson:"_id"`
	Seq  int64  `bson:"seq"`
}

// New creates a MongoDB-backed event log. entries stores individual log
// records; counter stores the monotonic sequence counter, keyed by name
// (so one counter collection can back multiple independent logs).
func New(entries, counter *mongo.Collection, name string) *EventLog {
	return &EventLog{entries: entries, counter: counter, name: name}
}

var _ store.EventLog = (*EventLog)(nil)

// Append writes payload to the log and returns its assigned sequence
// number.
func (l *EventLog) Append(ctx context.Context, payload []byte) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var doc counterDocument
	err := l.counter.FindOneAndUpdate(ctx,
		bson.M{"_id": l.name},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("mongodb event log %q: advance counter: %w", l.name, err)
	}
	if _, err := l.entries.InsertOne(ctx, entryDocument{SeqNo: doc.Seq, Payload: payload}); err != nil {
		return 0, fmt.Errorf("mongodb event log %q: insert entry %d: %w", l.name, doc.Seq, err)
	}
	return doc.Seq, nil
}

// Read returns all entries with SeqNo >= fromSeq, in order.
func (l *EventLog) Read(ctx context.Context, fromSeq int64) ([]store.LogEntry, error) {
	cur, err := l.entries.Find(ctx,
		bson.M{"_id": bson.M{"$gte": fromSeq}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("mongodb event log %q: find from %d: %w", l.name, fromSeq, err)
	}
	defer cur.Close(ctx)

	var out []store.LogEntry
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongodb event log %q: decode entry: %w", l.name, err)
		}
		out = append(out, store.LogEntry{SeqNo: doc.SeqNo, Payload: doc.Payload})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
