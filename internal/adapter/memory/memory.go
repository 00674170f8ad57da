package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/auth"
)

const (
	maxDemoPresentations = 20
	maxDemoSlides        = 100
	maxDemoTextLength    = 20000
	maxDemoTitleLength   = 255

	demoTTL = 60 * time.Minute

	// DefaultSlideID is the id of the slide every new presentation starts with.
	DefaultSlideID = "p"
)

// DynamoDBAPI is the subset of the DynamoDB client used for dev persistence.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// PresentationItem is the DynamoDB form of a demo presentation.
type PresentationItem struct {
	PK     string `dynamodbav:"pk"`
	UserID string `dynamodbav:"user_id"`
	Title  string `dynamodbav:"title"`
	Body   string `dynamodbav:"body"`
	TTL    int64  `dynamodbav:"ttl"`
}

// MemoryAdapter implements adapter.SlidesAPI without a remote service.
// If client is nil, presentations live only in process memory (for tests).
// If client is set, each change is also written to DynamoDB (for dev mode persistence).
type MemoryAdapter struct {
	client    DynamoDBAPI
	tableName string
	userID    string

	presentations map[string]*slides.Presentation
	batches       [][]*slides.Request
	mu            sync.Mutex

	// FailBatch, when set, is consulted before each BatchUpdate call with
	// the 1-based call number. A non-nil result fails the call.
	FailBatch func(call int, reqs []*slides.Request) error
	// FailPage, when set, fails GetPage for the pages it returns an error for.
	FailPage func(pageID string) error
}

func NewMemoryAdapter(client DynamoDBAPI, tableName, userID string) *MemoryAdapter {
	return &MemoryAdapter{
		client:        client,
		tableName:     tableName,
		userID:        userID,
		presentations: make(map[string]*slides.Presentation),
	}
}

func newSlide(id string) *slides.Page {
	return &slides.Page{
		ObjectId: id,
		PageType: "SLIDE",
		SlideProperties: &slides.SlideProperties{
			NotesPage: &slides.Page{
				ObjectId: id + "_notes",
				PageType: "NOTES",
				PageElements: []*slides.PageElement{{
					ObjectId: id + "_notes_body",
					Shape: &slides.Shape{
						ShapeType:   "TEXT_BOX",
						Placeholder: &slides.Placeholder{Type: "BODY"},
					},
				}},
			},
		},
	}
}

// Create creates a presentation holding one default slide, as Google does.
func (m *MemoryAdapter) Create(ctx context.Context, title string) (*slides.Presentation, error) {
	if len(title) > maxDemoTitleLength {
		return nil, fmt.Errorf("title too long (max %d characters)", maxDemoTitleLength)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.presentations) >= maxDemoPresentations {
		return nil, fmt.Errorf("presentation limit reached for demo mode (max %d)", maxDemoPresentations)
	}

	p := &slides.Presentation{
		PresentationId: uuid.New().String(),
		Title:          title,
		Slides:         []*slides.Page{newSlide(DefaultSlideID)},
	}
	if err := m.persist(ctx, p); err != nil {
		return nil, err
	}
	m.presentations[p.PresentationId] = p
	return clone(p)
}

// Get returns a copy of the presentation.
func (m *MemoryAdapter) Get(ctx context.Context, presentationID string) (*slides.Presentation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.load(ctx, presentationID)
	if err != nil {
		return nil, err
	}
	return clone(p)
}

// GetPage returns a copy of one slide.
func (m *MemoryAdapter) GetPage(ctx context.Context, presentationID, pageID string) (*slides.Page, error) {
	if m.FailPage != nil {
		if err := m.FailPage(pageID); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.load(ctx, presentationID)
	if err != nil {
		return nil, err
	}
	for _, page := range p.Slides {
		if page.ObjectId == pageID {
			return clonePage(page)
		}
	}
	return nil, pkgerrors.Wrapf(adapter.ErrNotFound, "page %s", pageID)
}

// BatchUpdate applies reqs to a copy of the presentation and commits the copy
// only when every request succeeds.
func (m *MemoryAdapter) BatchUpdate(ctx context.Context, presentationID string, reqs []*slides.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = append(m.batches, reqs)
	if m.FailBatch != nil {
		if err := m.FailBatch(len(m.batches), reqs); err != nil {
			return err
		}
	}

	p, err := m.load(ctx, presentationID)
	if err != nil {
		return err
	}
	next, err := clone(p)
	if err != nil {
		return err
	}
	for i, r := range reqs {
		if err := apply(next, r); err != nil {
			return pkgerrors.Wrapf(err, "request %d", i)
		}
	}
	if err := m.persist(ctx, next); err != nil {
		return err
	}
	m.presentations[presentationID] = next
	return nil
}

// Batches returns every request list passed to BatchUpdate, in call order.
func (m *MemoryAdapter) Batches() [][]*slides.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*slides.Request, len(m.batches))
	copy(out, m.batches)
	return out
}

// Text returns the text of a shape, searching slides and notes pages.
func (m *MemoryAdapter) Text(presentationID, objectID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.presentations[presentationID]
	if !ok {
		return "", false
	}
	el := findElement(p, objectID)
	if el == nil || el.Shape == nil {
		return "", false
	}
	return shapeText(el.Shape), true
}

func (m *MemoryAdapter) load(ctx context.Context, presentationID string) (*slides.Presentation, error) {
	if p, ok := m.presentations[presentationID]; ok {
		return p, nil
	}
	if m.client == nil {
		return nil, pkgerrors.Wrapf(adapter.ErrNotFound, "presentation %s", presentationID)
	}

	out, err := m.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(m.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: presentationID},
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load presentation")
	}
	if out.Item == nil {
		return nil, pkgerrors.Wrapf(adapter.ErrNotFound, "presentation %s", presentationID)
	}
	var item PresentationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, pkgerrors.Wrap(err, "unmarshal presentation item")
	}
	if item.UserID != m.userID {
		return nil, pkgerrors.Wrapf(adapter.ErrNotFound, "presentation %s", presentationID)
	}
	var p slides.Presentation
	if err := json.Unmarshal([]byte(item.Body), &p); err != nil {
		return nil, pkgerrors.Wrap(err, "decode presentation")
	}
	m.presentations[presentationID] = &p
	return &p, nil
}

func (m *MemoryAdapter) persist(ctx context.Context, p *slides.Presentation) error {
	if m.client == nil {
		return nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return pkgerrors.Wrap(err, "encode presentation")
	}
	av, err := attributevalue.MarshalMap(PresentationItem{
		PK:     p.PresentationId,
		UserID: m.userID,
		Title:  p.Title,
		Body:   string(body),
		TTL:    time.Now().Add(demoTTL).Unix(),
	})
	if err != nil {
		return err
	}
	_, err = m.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(m.tableName),
		Item:      av,
	})
	return pkgerrors.Wrap(err, "save presentation")
}

func clone(p *slides.Presentation) (*slides.Presentation, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var out slides.Presentation
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func clonePage(page *slides.Page) (*slides.Page, error) {
	b, err := json.Marshal(page)
	if err != nil {
		return nil, err
	}
	var out slides.Page
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Provider implements adapter.SlidesProvider with one MemoryAdapter per user.
type Provider struct {
	client    DynamoDBAPI
	tableName string
	stores    map[string]*MemoryAdapter
	mu        sync.Mutex
}

func NewProvider(client DynamoDBAPI, tableName string) *Provider {
	return &Provider{
		client:    client,
		tableName: tableName,
		stores:    make(map[string]*MemoryAdapter),
	}
}

func (p *Provider) GetAPI(ctx context.Context, ac *auth.AuthContext) (adapter.SlidesAPI, error) {
	return p.Adapter(ac.UserID), nil
}

// Adapter returns the user's adapter, creating it on first use.
func (p *Provider) Adapter(userID string) *MemoryAdapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stores[userID]; !ok {
		p.stores[userID] = NewMemoryAdapter(p.client, p.tableName, userID)
	}
	return p.stores[userID]
}
