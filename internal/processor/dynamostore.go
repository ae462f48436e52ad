package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// TableNames configures the three wide-column tables named in spec §6:
// messages, user_conversations, delivery_status.
type TableNames struct {
	Messages          string
	UserConversations string
	DeliveryStatus    string
}

// DynamoStore implements Store against DynamoDB. Grounded in the
// aws-sdk-go-v2/service/dynamodb dependency carried from the
// ae-lexs-realtime-messaging-platform manifest in the retrieval pack.
type DynamoStore struct {
	client *dynamodb.Client
	tables TableNames
}

// NewDynamoStore wraps an already-configured *dynamodb.Client.
func NewDynamoStore(client *dynamodb.Client, tables TableNames) *DynamoStore {
	return &DynamoStore{client: client, tables: tables}
}

// messagePartitionKey combines conversation and bucket so a single day's
// traffic for a conversation lands in one partition, per spec §3.
func messagePartitionKey(conversationID uuid.UUID, bucket int32) string {
	return fmt.Sprintf("%s#%d", conversationID, bucket)
}

// InsertLogEntry writes entry with a conditional expression on the sort
// key's non-existence, so a bus redelivery of the same envelope is a
// silent no-op rather than a duplicate row (spec §4.E step 3, §8).
func (d *DynamoStore) InsertLogEntry(ctx context.Context, entry LogEntry) (bool, error) {
	item := map[string]any{
		"pk":              messagePartitionKey(entry.ConversationID, entry.Bucket),
		"message_id":      entry.MessageID.String(),
		"conversation_id": entry.ConversationID.String(),
		"bucket":          entry.Bucket,
		"sender_id":       entry.SenderID.String(),
		"ciphertext":      entry.Ciphertext,
		"nonce":           entry.Nonce,
		"client_sent_at":  entry.ClientSentAt.UnixMilli(),
		"received_at":     entry.ReceivedAt.UnixMilli(),
	}
	if entry.ReplyToID != nil {
		item["reply_to_id"] = entry.ReplyToID.String()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return false, fmt.Errorf("processor: marshal log entry: %w", err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tables.Messages),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(message_id)"),
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return false, nil
		}
		return false, fmt.Errorf("processor: put log entry: %w", err)
	}
	return true, nil
}

func (d *DynamoStore) UpsertInbox(ctx context.Context, userID, conversationID, lastMessageID uuid.UUID, lastMessageAt int64) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tables.UserConversations),
		Key: map[string]types.AttributeValue{
			"user_id":         &types.AttributeValueMemberS{Value: userID.String()},
			"conversation_id": &types.AttributeValueMemberS{Value: conversationID.String()},
		},
		UpdateExpression: aws.String(
			"ADD unread_count :one SET last_message_id = :mid, last_message_at = :at"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":mid": &types.AttributeValueMemberS{Value: lastMessageID.String()},
			":at":  &types.AttributeValueMemberN{Value: strconv.FormatInt(lastMessageAt, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("processor: upsert inbox: %w", err)
	}
	return nil
}

// ClearUnread sets the sender's own last-seen pointer to the message just
// sent and resets their unread_count to zero, since everything before
// their own message counts as seen.
func (d *DynamoStore) ClearUnread(ctx context.Context, userID, conversationID, lastMessageID uuid.UUID, lastMessageAt int64) error {
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tables.UserConversations),
		Key: map[string]types.AttributeValue{
			"user_id":         &types.AttributeValueMemberS{Value: userID.String()},
			"conversation_id": &types.AttributeValueMemberS{Value: conversationID.String()},
		},
		UpdateExpression: aws.String(
			"SET last_seen_message_id = :mid, last_message_at = :at, unread_count = :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":mid":  &types.AttributeValueMemberS{Value: lastMessageID.String()},
			":at":   &types.AttributeValueMemberN{Value: strconv.FormatInt(lastMessageAt, 10)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		return fmt.Errorf("processor: clear unread: %w", err)
	}
	return nil
}

// InsertDeliveryRecords writes one delivery_status row per recipient. A
// PutItem without a condition is idempotent here: replaying the same
// (message_id, user_id) pair simply overwrites identical field values.
func (d *DynamoStore) InsertDeliveryRecords(ctx context.Context, records []DeliveryRecord) error {
	for _, rec := range records {
		item := map[string]any{
			"message_id": rec.MessageID.String(),
			"user_id":    rec.UserID.String(),
			"delivered":  rec.Delivered,
			"read":       rec.Read,
		}
		if rec.DeliveredAt != nil {
			item["delivered_at"] = rec.DeliveredAt.UnixMilli()
		}
		if rec.ReadAt != nil {
			item["read_at"] = rec.ReadAt.UnixMilli()
		}

		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return fmt.Errorf("processor: marshal delivery record: %w", err)
		}

		_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(d.tables.DeliveryStatus),
			Item:      av,
		})
		if err != nil {
			return fmt.Errorf("processor: put delivery record: %w", err)
		}
	}
	return nil
}

func (d *DynamoStore) MarkRead(ctx context.Context, messageID, userID uuid.UUID) error {
	now := time.Now().UnixMilli()
	_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tables.DeliveryStatus),
		Key: map[string]types.AttributeValue{
			"message_id": &types.AttributeValueMemberS{Value: messageID.String()},
			"user_id":    &types.AttributeValueMemberS{Value: userID.String()},
		},
		UpdateExpression: aws.String("SET #r = :true, read_at = :at"),
		ExpressionAttributeNames: map[string]string{
			"#r": "read",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
			":at":   &types.AttributeValueMemberN{Value: strconv.FormatInt(now, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("processor: mark read: %w", err)
	}
	return nil
}
