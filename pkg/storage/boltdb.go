package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/slipway-sh/slipway/pkg/types"
)

var (
	// Bucket names
	bucketRuns       = []byte("runs")
	bucketTopologies = []byte("topologies")
	bucketWorkloads  = []byte("workloads")
)

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database under dataDir
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "slipway.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketRuns,
			bucketTopologies,
			bucketWorkloads,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, key string, value interface{}) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(key), data)
	})
}

func (s *BoltStore) get(bucket []byte, key string, out interface{}) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s %s: %w", bucket, key, ErrNotFound)
		}
		return json.Unmarshal(data, out)
	})
}

func (s *BoltStore) delete(bucket []byte, key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(key))
	})
}

// Run operations

func (s *BoltStore) SaveRun(run *types.PipelineRun) error {
	return s.put(bucketRuns, run.ID, run)
}

func (s *BoltStore) GetRun(id string) (*types.PipelineRun, error) {
	var run types.PipelineRun
	if err := s.get(bucketRuns, id, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every run, newest first.
func (s *BoltStore) ListRuns() ([]*types.PipelineRun, error) {
	var runs []*types.PipelineRun
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run types.PipelineRun
			if err := json.Unmarshal(v, &run); err != nil {
				return err
			}
			runs = append(runs, &run)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *BoltStore) ListRunsByCluster(cluster string) ([]*types.PipelineRun, error) {
	runs, err := s.ListRuns()
	if err != nil {
		return nil, err
	}

	var filtered []*types.PipelineRun
	for _, run := range runs {
		if run.Cluster == cluster {
			filtered = append(filtered, run)
		}
	}
	return filtered, nil
}

func (s *BoltStore) DeleteRun(id string) error {
	return s.delete(bucketRuns, id)
}

// Topology operations

func (s *BoltStore) SaveTopology(ct *types.ClusterTopology) error {
	return s.put(bucketTopologies, ct.Name, ct)
}

func (s *BoltStore) GetTopology(name string) (*types.ClusterTopology, error) {
	var ct types.ClusterTopology
	if err := s.get(bucketTopologies, name, &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

func (s *BoltStore) ListTopologies() ([]*types.ClusterTopology, error) {
	var tops []*types.ClusterTopology
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketTopologies).ForEach(func(k, v []byte) error {
			var ct types.ClusterTopology
			if err := json.Unmarshal(v, &ct); err != nil {
				return err
			}
			tops = append(tops, &ct)
			return nil
		})
	})
	return tops, err
}

func (s *BoltStore) DeleteTopology(name string) error {
	return s.delete(bucketTopologies, name)
}

// Workload operations

func workloadKey(namespace, name string) string {
	return namespace + "/" + name
}

func (s *BoltStore) SaveWorkload(wd *types.WorkloadDescriptor) error {
	return s.put(bucketWorkloads, wd.Key(), wd)
}

func (s *BoltStore) GetWorkload(namespace, name string) (*types.WorkloadDescriptor, error) {
	var wd types.WorkloadDescriptor
	if err := s.get(bucketWorkloads, workloadKey(namespace, name), &wd); err != nil {
		return nil, err
	}
	return &wd, nil
}

func (s *BoltStore) ListWorkloads() ([]*types.WorkloadDescriptor, error) {
	var wds []*types.WorkloadDescriptor
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketWorkloads).ForEach(func(k, v []byte) error {
			var wd types.WorkloadDescriptor
			if err := json.Unmarshal(v, &wd); err != nil {
				return err
			}
			wds = append(wds, &wd)
			return nil
		})
	})
	return wds, err
}

func (s *BoltStore) DeleteWorkload(namespace, name string) error {
	return s.delete(bucketWorkloads, workloadKey(namespace, name))
}
