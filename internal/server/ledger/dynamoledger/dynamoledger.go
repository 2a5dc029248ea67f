// Package dynamoledger mirrors audit records to a DynamoDB table keyed by
// record_id. Items are written once with a conditional put and never
// updated.
package dynamoledger

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/JustWint3r/SecureShare/internal/server/ledger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client is the subset of *dynamodb.Client used by Writer.
type Client interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

type item struct {
	RecordID  string `dynamodbav:"record_id"`
	Ref       string `dynamodbav:"ref"`
	Payload   []byte `dynamodbav:"payload"`
	SHA256    string `dynamodbav:"sha256"`
	WrittenAt int64  `dynamodbav:"written_at"`
}

type Writer struct {
	client Client
	table  string
	now    func() time.Time
}

func New(client Client, table string) *Writer {
	return &Writer{client: client, table: table, now: time.Now}
}

var _ ledger.Writer = (*Writer)(nil)

func (w *Writer) Write(ctx context.Context, recordID string, payload []byte) (string, error) {
	sum := sha256.Sum256(payload)
	digest := hex.EncodeToString(sum[:])

	it := item{
		RecordID:  recordID,
		Ref:       fmt.Sprintf("dynamodb:%s:%s:%s", w.table, recordID, digest[:16]),
		Payload:   payload,
		SHA256:    digest,
		WrittenAt: w.now().Unix(),
	}
	av, err := attributevalue.MarshalMap(it)
	if err != nil {
		return "", fmt.Errorf("marshal ledger item: %w", err)
	}

	_, err = w.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(w.table),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(record_id)"),
	})
	if err == nil {
		return it.Ref, nil
	}

	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return "", fmt.Errorf("ledger put %s: %w", recordID, err)
	}
	return w.existing(ctx, recordID, payload)
}

// existing resolves a write that lost the conditional put: the same payload
// is a replay and yields the stored reference.
func (w *Writer) existing(ctx context.Context, recordID string, payload []byte) (string, error) {
	out, err := w.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(w.table),
		Key: map[string]types.AttributeValue{
			"record_id": &types.AttributeValueMemberS{Value: recordID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ledger get %s: %w", recordID, err)
	}
	if out.Item == nil {
		return "", fmt.Errorf("ledger item %s vanished after conditional failure", recordID)
	}

	var it item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return "", fmt.Errorf("unmarshal ledger item: %w", err)
	}
	if !bytes.Equal(it.Payload, payload) {
		return "", fmt.Errorf("%w %s", ledger.ErrConflict, recordID)
	}
	return it.Ref, nil
}
