package dynamodb

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"consent-console/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTable serves the single-table access pattern the store relies on.
type fakeTable struct {
	items   []map[string]awsv2types.AttributeValue
	lastPut *awsv2dynamodb.PutItemInput
	lastQry *awsv2dynamodb.QueryInput
	putErr  error
}

func str(av awsv2types.AttributeValue) string {
	if s, ok := av.(*awsv2types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeTable) PutItem(_ context.Context, in *awsv2dynamodb.PutItemInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error) {
	f.lastPut = in
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.items = append(f.items, in.Item)
	return &awsv2dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) Query(_ context.Context, in *awsv2dynamodb.QueryInput, _ ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error) {
	f.lastQry = in
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":sk"])
	var out []map[string]awsv2types.AttributeValue
	for _, it := range f.items {
		if str(it["PK"]) == pk && strings.HasPrefix(str(it["SK"]), prefix) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		less := str(out[i]["SK"]) < str(out[j]["SK"])
		if !aws.ToBool(in.ScanIndexForward) {
			return !less
		}
		return less
	})
	if in.Limit != nil && int(*in.Limit) < len(out) {
		out = out[:*in.Limit]
	}
	return &awsv2dynamodb.QueryOutput{Items: out}, nil
}

func alertAt(id, user string, at time.Time) domain.Alert {
	return domain.Alert{
		ID:        id,
		UserID:    user,
		Variant:   domain.AlertDanger,
		Key:       "removeConsentError",
		Message:   "Could not remove consent: boom",
		Detail:    "boom",
		CreatedAt: at,
	}
}

func TestAlertStore_SaveAndListNewestFirst(t *testing.T) {
	table := &fakeTable{}
	store := NewAlertStore(table, "alerts", 0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(ctx, alertAt("a1", "u1", base)))
	require.NoError(t, store.Save(ctx, alertAt("a2", "u1", base.Add(900*time.Millisecond))))
	require.NoError(t, store.Save(ctx, alertAt("a3", "u1", base.Add(10*time.Second))))
	require.NoError(t, store.Save(ctx, alertAt("b1", "u2", base.Add(time.Hour))))

	got, err := store.ListRecent(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a3", got[0].ID)
	assert.Equal(t, "a2", got[1].ID)
	assert.Equal(t, alertAt("a2", "u1", base.Add(900*time.Millisecond)), got[1])

	assert.Equal(t, "alerts", aws.ToString(table.lastQry.TableName))
	assert.False(t, aws.ToBool(table.lastQry.ScanIndexForward))
	assert.Equal(t, int32(2), aws.ToInt32(table.lastQry.Limit))
}

func TestAlertStore_ItemShape(t *testing.T) {
	table := &fakeTable{}
	store := NewAlertStore(table, "alerts", 24*time.Hour)
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Save(context.Background(), alertAt("a1", "u1", at)))

	item := table.lastPut.Item
	assert.Equal(t, "USER#u1", str(item["PK"]))
	assert.Equal(t, "ALERT#2024-03-01T09:00:00.000000000Z#a1", str(item["SK"]))
	assert.Equal(t, "ALERT", str(item["EntityType"]))
	exp, ok := item["ExpiresAt"].(*awsv2types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1709370000", exp.Value)
}

func TestAlertStore_Errors(t *testing.T) {
	table := &fakeTable{putErr: errors.New("throttled")}
	store := NewAlertStore(table, "alerts", 0)
	ctx := context.Background()

	assert.ErrorIs(t, store.Save(ctx, domain.Alert{ID: "x"}), domain.ErrInvalidInput)
	assert.EqualError(t, store.Save(ctx, alertAt("a1", "u1", time.Now())), "throttled")

	_, err := store.ListRecent(ctx, "", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.ListRecent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(maxListLimit), aws.ToInt32(table.lastQry.Limit))
}
