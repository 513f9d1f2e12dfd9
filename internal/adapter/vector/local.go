package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"go.etcd.io/bbolt"

	"recall/internal/port"
)

var bucketVectors = []byte("vectors")

// LocalIndex is a bbolt-backed exact-scan vector store for setups
// without an external nearest-neighbor service. Fine for personal
// corpora; scans every vector per query.
type LocalIndex struct {
	db *bbolt.DB
}

type storedVector struct {
	DocID  string    `json:"doc_id"`
	Vector []float32 `json:"vector"`
}

func NewLocalIndex(path string) (*LocalIndex, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &LocalIndex{db: db}, nil
}

func (x *LocalIndex) Close() error {
	return x.db.Close()
}

func (x *LocalIndex) Upsert(_ context.Context, items []port.VectorItem) error {
	return x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		for _, item := range items {
			data, err := json.Marshal(storedVector{DocID: item.DocID, Vector: item.Vector})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ChunkID), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (x *LocalIndex) Query(ctx context.Context, vector []float32, k int) ([]port.VectorMatch, error) {
	var matches []port.VectorMatch
	err := x.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(key, value []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var sv storedVector
			if err := json.Unmarshal(value, &sv); err != nil {
				return err
			}
			matches = append(matches, port.VectorMatch{
				ChunkID:    string(key),
				Similarity: CosineSimilarity(vector, sv.Vector),
				Vector:     sv.Vector,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ChunkID < matches[j].ChunkID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (x *LocalIndex) DeleteDoc(_ context.Context, docID string) error {
	return x.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		var doomed [][]byte
		err := b.ForEach(func(key, value []byte) error {
			var sv storedVector
			if err := json.Unmarshal(value, &sv); err != nil {
				return err
			}
			if sv.DocID == docID {
				doomed = append(doomed, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range doomed {
			if err := b.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// CosineSimilarity returns the cosine of the angle between two vectors,
// 0 when either has zero norm or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
