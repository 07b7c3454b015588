package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// memDynamo is an in-memory stand-in for the subset of DynamoDB used by the
// repository. It understands the key conditions the repository issues.
type memDynamo struct {
	items  map[string]map[string]types.AttributeValue
	tables map[string]*types.TableDescription

	getErr      error
	putErr      error
	queryErr    error
	batchErr    error
	describeErr error

	// unprocessedCalls makes that many BatchGetItem calls return every key
	// as unprocessed.
	unprocessedCalls int

	getCalls   int
	putCalls   int
	queryCalls int
	batchCalls int

	lastGetInput   *dynamodb.GetItemInput
	lastPutInput   *dynamodb.PutItemInput
	lastQueryIn    *dynamodb.QueryInput
	lastBatchInput *dynamodb.BatchGetItemInput
}

func newMemDynamo() *memDynamo {
	return &memDynamo{
		items:  map[string]map[string]types.AttributeValue{},
		tables: map[string]*types.TableDescription{},
	}
}

func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	}
	return ""
}

func storeKey(table string, key map[string]types.AttributeValue) string {
	pk := key[attrRoomID]
	if pk == nil {
		pk = key[attrUserID]
	}
	sk := ""
	if v, ok := key[attrSort]; ok {
		sk = scalar(v)
	}
	return table + "|" + scalar(pk) + "|" + sk
}

func (m *memDynamo) put(table string, item map[string]types.AttributeValue) {
	m.items[storeKey(table, item)] = item
}

func (m *memDynamo) get(table string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, bool) {
	item, ok := m.items[storeKey(table, key)]
	return item, ok
}

func (m *memDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.getCalls++
	m.lastGetInput = in
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.get(aws.ToString(in.TableName), in.Key)
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (m *memDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putCalls++
	m.lastPutInput = in
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.put(aws.ToString(in.TableName), in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (m *memDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryCalls++
	m.lastQueryIn = in
	if m.queryErr != nil {
		return nil, m.queryErr
	}

	prefix := aws.ToString(in.TableName) + "|"
	var matched []map[string]types.AttributeValue
	for k, item := range m.items {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if in.IndexName != nil {
			if scalar(item[attrName]) == scalar(in.ExpressionAttributeValues[":n"]) {
				matched = append(matched, item)
			}
			continue
		}
		if scalar(item[attrRoomID]) != scalar(in.ExpressionAttributeValues[":r"]) {
			continue
		}
		if strings.HasPrefix(scalar(item[attrSort]), scalar(in.ExpressionAttributeValues[":m"])) {
			matched = append(matched, item)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return scalar(matched[i][attrSort]) < scalar(matched[j][attrSort])
	})
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if in.Limit != nil && int(*in.Limit) < len(matched) {
		matched = matched[:*in.Limit]
	}
	return &dynamodb.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (m *memDynamo) BatchGetItem(_ context.Context, in *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	m.batchCalls++
	m.lastBatchInput = in
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	if m.unprocessedCalls > 0 {
		m.unprocessedCalls--
		return &dynamodb.BatchGetItemOutput{
			Responses:       map[string][]map[string]types.AttributeValue{},
			UnprocessedKeys: in.RequestItems,
		}, nil
	}

	out := &dynamodb.BatchGetItemOutput{Responses: map[string][]map[string]types.AttributeValue{}}
	for table, ka := range in.RequestItems {
		for _, key := range ka.Keys {
			if item, ok := m.get(table, key); ok {
				out.Responses[table] = append(out.Responses[table], item)
			}
		}
	}
	return out, nil
}

func (m *memDynamo) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	table, ok := m.tables[aws.ToString(in.TableName)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found")}
	}
	return &dynamodb.DescribeTableOutput{Table: table}, nil
}

// stubLedger records bumps without touching the store.
type stubLedger struct {
	ids     []string
	bumped  []string
	bumpErr error
	listErr error
}

func (s *stubLedger) Bump(_ context.Context, roomID string) error {
	if s.bumpErr != nil {
		return s.bumpErr
	}
	s.bumped = append(s.bumped, roomID)
	return nil
}

func (s *stubLedger) List(_ context.Context) ([]string, error) {
	return s.ids, s.listErr
}
