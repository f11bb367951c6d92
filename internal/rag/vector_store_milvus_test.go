package rag

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMilvusClient 只覆盖集合初始化用到的方法，其余方法调用会panic
type fakeMilvusClient struct {
	client.Client

	exists       atomic.Bool
	creates      atomic.Int32
	indexCreates atomic.Int32
	loads        atomic.Int32
	lastIndex    entity.Index
}

func (c *fakeMilvusClient) HasCollection(ctx context.Context, collName string) (bool, error) {
	return c.exists.Load(), nil
}

func (c *fakeMilvusClient) CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error {
	c.creates.Add(1)
	c.exists.Store(true)
	return nil
}

func (c *fakeMilvusClient) CreateIndex(ctx context.Context, collName string, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error {
	c.indexCreates.Add(1)
	c.lastIndex = idx
	return nil
}

func (c *fakeMilvusClient) LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error {
	c.loads.Add(1)
	return nil
}

func TestMilvusEnsureCollectionCreatesOnce(t *testing.T) {
	fake := &fakeMilvusClient{}
	store := &milvusVectorStore{
		milvusClient: fake,
		collection:   "doc_chunks",
		vectorSize:   4,
	}

	require.NoError(t, store.ensureCollection(context.Background()))
	assert.Equal(t, int32(1), fake.creates.Load())
	assert.Equal(t, int32(1), fake.indexCreates.Load())
	assert.Equal(t, int32(1), fake.loads.Load())
	assert.Equal(t, entity.HNSW, fake.lastIndex.IndexType())

	// 已加载后不再重复建表或加载
	require.NoError(t, store.ensureCollection(context.Background()))
	assert.Equal(t, int32(1), fake.creates.Load())
	assert.Equal(t, int32(1), fake.loads.Load())
}

func TestMilvusEnsureCollectionConcurrent(t *testing.T) {
	fake := &fakeMilvusClient{}
	store := &milvusVectorStore{
		milvusClient: fake,
		collection:   "doc_chunks",
		vectorSize:   4,
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.ensureCollection(context.Background()))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fake.creates.Load())
	assert.Equal(t, int32(1), fake.loads.Load())
}
