// Package credential persists per-user Google OAuth credentials.
package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	pkgerrors "github.com/pkg/errors"

	"github.com/jun/gophdeck/internal/crypto"
	"github.com/jun/gophdeck/internal/model"
)

// ErrNotFound is returned for users without a stored credential.
var ErrNotFound = errors.New("credential not found")

// Store reads and updates credentials.
type Store interface {
	Get(ctx context.Context, userID string) (*model.Credential, error)
	// Update applies a partial update atomically and returns the result.
	Update(ctx context.Context, userID string, u model.CredentialUpdate) (*model.Credential, error)
	Put(ctx context.Context, c *model.Credential) error
}

// DynamoDBAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// DynamoStore stores credentials in a DynamoDB table keyed by user_id.
// Tokens are encrypted before they leave the process. With a nil client it
// keeps items in memory.
type DynamoStore struct {
	client    DynamoDBAPI
	tableName string
	encryptor crypto.Encryptor
	now       func() time.Time

	// In-memory fallback
	items map[string]model.StoredCredential
	mu    sync.Mutex
}

// NewDynamoStore creates a DynamoStore.
func NewDynamoStore(client DynamoDBAPI, tableName string, encryptor crypto.Encryptor) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		encryptor: encryptor,
		now:       time.Now,
		items:     make(map[string]model.StoredCredential),
	}
}

func userKey(userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id": &types.AttributeValueMemberS{Value: userID},
	}
}

// Get returns the decrypted credential of userID.
func (s *DynamoStore) Get(ctx context.Context, userID string) (*model.Credential, error) {
	var stored model.StoredCredential

	if s.client == nil {
		s.mu.Lock()
		item, ok := s.items[userID]
		s.mu.Unlock()
		if !ok {
			return nil, ErrNotFound
		}
		stored = item
	} else {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      aws.String(s.tableName),
			Key:            userKey(userID),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "get credential item")
		}
		if out.Item == nil {
			return nil, ErrNotFound
		}
		if err := attributevalue.UnmarshalMap(out.Item, &stored); err != nil {
			return nil, pkgerrors.Wrap(err, "unmarshal credential")
		}
	}
	return s.decrypt(ctx, stored)
}

// Put replaces the stored credential of c.UserID.
func (s *DynamoStore) Put(ctx context.Context, c *model.Credential) error {
	stored, err := s.encrypt(ctx, c)
	if err != nil {
		return err
	}

	if s.client == nil {
		s.mu.Lock()
		s.items[c.UserID] = *stored
		s.mu.Unlock()
		return nil
	}

	item, err := attributevalue.MarshalMap(stored)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal credential")
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return pkgerrors.Wrap(err, "put credential item")
}

// Update applies u in a single conditional UpdateItem call. Only the
// fields set in u change. The user must already exist.
func (s *DynamoStore) Update(ctx context.Context, userID string, u model.CredentialUpdate) (*model.Credential, error) {
	now := s.now().UTC()

	var encAccess, encRefresh string
	var err error
	if u.AccessToken != nil {
		if encAccess, err = s.encryptor.Encrypt(ctx, *u.AccessToken); err != nil {
			return nil, pkgerrors.Wrap(err, "encrypt access token")
		}
	}
	if u.RefreshToken != nil {
		if encRefresh, err = s.encryptor.Encrypt(ctx, *u.RefreshToken); err != nil {
			return nil, pkgerrors.Wrap(err, "encrypt refresh token")
		}
	}

	if s.client == nil {
		s.mu.Lock()
		item, ok := s.items[userID]
		if !ok {
			s.mu.Unlock()
			return nil, ErrNotFound
		}
		if u.AccessToken != nil {
			item.EncryptedAccessToken = encAccess
		}
		if u.RefreshToken != nil {
			item.EncryptedRefreshToken = encRefresh
		}
		if u.Expiry != nil {
			exp := *u.Expiry
			item.Expiry = &exp
		}
		item.UpdatedAt = now
		s.items[userID] = item
		s.mu.Unlock()
		return s.decrypt(ctx, item)
	}

	sets := []string{"updated_at = :now"}
	values := map[string]types.AttributeValue{}
	if values[":now"], err = attributevalue.Marshal(now); err != nil {
		return nil, pkgerrors.Wrap(err, "marshal updated_at")
	}
	if u.AccessToken != nil {
		sets = append(sets, "encrypted_access_token = :at")
		values[":at"] = &types.AttributeValueMemberS{Value: encAccess}
	}
	if u.RefreshToken != nil {
		sets = append(sets, "encrypted_refresh_token = :rt")
		values[":rt"] = &types.AttributeValueMemberS{Value: encRefresh}
	}
	if u.Expiry != nil {
		if values[":exp"], err = attributevalue.Marshal(u.Expiry.UTC()); err != nil {
			return nil, pkgerrors.Wrap(err, "marshal expiry")
		}
		sets = append(sets, "expiry = :exp")
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.tableName),
		Key:                       userKey(userID),
		UpdateExpression:          aws.String("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       aws.String("attribute_exists(user_id)"),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "update credential item")
	}

	var stored model.StoredCredential
	if err := attributevalue.UnmarshalMap(out.Attributes, &stored); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshal credential")
	}
	return s.decrypt(ctx, stored)
}

func (s *DynamoStore) encrypt(ctx context.Context, c *model.Credential) (*model.StoredCredential, error) {
	access, err := s.encryptor.Encrypt(ctx, c.AccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encrypt access token")
	}
	refresh, err := s.encryptor.Encrypt(ctx, c.RefreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "encrypt refresh token")
	}
	updated := c.UpdatedAt
	if updated.IsZero() {
		updated = s.now().UTC()
	}
	return &model.StoredCredential{
		UserID:                c.UserID,
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: refresh,
		Expiry:                c.Expiry,
		UpdatedAt:             updated,
	}, nil
}

func (s *DynamoStore) decrypt(ctx context.Context, stored model.StoredCredential) (*model.Credential, error) {
	access, err := s.encryptor.Decrypt(ctx, stored.EncryptedAccessToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "decrypt access token")
	}
	refresh, err := s.encryptor.Decrypt(ctx, stored.EncryptedRefreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "decrypt refresh token")
	}
	return &model.Credential{
		UserID:       stored.UserID,
		AccessToken:  access,
		RefreshToken: refresh,
		Expiry:       stored.Expiry,
		UpdatedAt:    stored.UpdatedAt,
	}, nil
}
