package dynamodb

import (
	"context"
	"fmt"
	"time"

	"consent-console/internal/domain"
	"consent-console/internal/ports"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	awsv2dynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsv2types "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	awsv2xray "github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/aws/aws-xray-sdk-go/xray"
)

// sortTime keeps sort keys fixed width so they order chronologically.
const sortTime = "2006-01-02T15:04:05.000000000Z"

const maxListLimit = 100

// API is the part of the DynamoDB client the store uses.
type API interface {
	PutItem(ctx context.Context, in *awsv2dynamodb.PutItemInput, opts ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *awsv2dynamodb.QueryInput, opts ...func(*awsv2dynamodb.Options)) (*awsv2dynamodb.QueryOutput, error)
}

func NewAPI(ctx context.Context, region string) (API, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	awsv2xray.AWSV2Instrumentor(&cfg.APIOptions)
	return awsv2dynamodb.NewFromConfig(cfg), nil
}

// AlertStore keeps a per-user alert history in a single table keyed by
// PK=USER#<id> and SK=ALERT#<time>#<alert id>.
type AlertStore struct {
	db        API
	tableName string
	retention time.Duration
}

// NewAlertStore returns a store writing to tableName. With a non-zero
// retention every item carries an ExpiresAt epoch for the table's TTL.
func NewAlertStore(db API, tableName string, retention time.Duration) *AlertStore {
	return &AlertStore{db: db, tableName: tableName, retention: retention}
}

var _ ports.AlertHistory = (*AlertStore)(nil)

func userPK(userID string) string { return "USER#" + userID }

func alertSK(at time.Time, id string) string {
	return "ALERT#" + at.UTC().Format(sortTime) + "#" + id
}

type alertItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ID         string `dynamodbav:"ID"`
	UserID     string `dynamodbav:"UserID"`
	Variant    string `dynamodbav:"Variant"`
	Key        string `dynamodbav:"Key,omitempty"`
	Message    string `dynamodbav:"Message"`
	Detail     string `dynamodbav:"Detail,omitempty"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	ExpiresAt  int64  `dynamodbav:"ExpiresAt,omitempty"`
}

func (s *AlertStore) Save(ctx context.Context, alert domain.Alert) error {
	if alert.UserID == "" || alert.ID == "" {
		return fmt.Errorf("alert user and id: %w", domain.ErrInvalidInput)
	}
	item := alertItem{
		PK:         userPK(alert.UserID),
		SK:         alertSK(alert.CreatedAt, alert.ID),
		EntityType: "ALERT",
		ID:         alert.ID,
		UserID:     alert.UserID,
		Variant:    string(alert.Variant),
		Key:        alert.Key,
		Message:    alert.Message,
		Detail:     alert.Detail,
		CreatedAt:  alert.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if s.retention > 0 {
		item.ExpiresAt = alert.CreatedAt.Add(s.retention).Unix()
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return err
	}
	return capture(ctx, "DynamoDB.PutAlert", func(ctx context.Context) error {
		_, err := s.db.PutItem(ctx, &awsv2dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      av,
		})
		return err
	})
}

// ListRecent returns up to limit alerts of the user, newest first.
func (s *AlertStore) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Alert, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id: %w", domain.ErrInvalidInput)
	}
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	var out *awsv2dynamodb.QueryOutput
	err := capture(ctx, "DynamoDB.QueryAlerts", func(ctx context.Context) error {
		var e error
		out, e = s.db.Query(ctx, &awsv2dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]awsv2types.AttributeValue{
				":pk": &awsv2types.AttributeValueMemberS{Value: userPK(userID)},
				":sk": &awsv2types.AttributeValueMemberS{Value: "ALERT#"},
			},
			ScanIndexForward: aws.Bool(false),
			Limit:            aws.Int32(int32(limit)),
		})
		return e
	})
	if err != nil {
		return nil, err
	}
	var items []alertItem
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
		return nil, err
	}
	alerts := make([]domain.Alert, 0, len(items))
	for _, it := range items {
		createdAt, _ := time.Parse(time.RFC3339Nano, it.CreatedAt)
		alerts = append(alerts, domain.Alert{
			ID:        it.ID,
			UserID:    it.UserID,
			Variant:   domain.AlertVariant(it.Variant),
			Key:       it.Key,
			Message:   it.Message,
			Detail:    it.Detail,
			CreatedAt: createdAt,
		})
	}
	return alerts, nil
}

// capture records fn as a subsegment when ctx is traced.
func capture(ctx context.Context, name string, fn func(context.Context) error) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, name, fn)
}
