package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"google.golang.org/api/slides/v1"

	"github.com/jun/gophdeck/internal/adapter"
	"github.com/jun/gophdeck/internal/auth"
)

func createSlide(id string) *slides.Request {
	return &slides.Request{CreateSlide: &slides.CreateSlideRequest{ObjectId: id}}
}

func createShape(id, page string) *slides.Request {
	return &slides.Request{CreateShape: &slides.CreateShapeRequest{
		ObjectId:          id,
		ShapeType:         "TEXT_BOX",
		ElementProperties: &slides.PageElementProperties{PageObjectId: page},
	}}
}

func insertText(id, text string) *slides.Request {
	return &slides.Request{InsertText: &slides.InsertTextRequest{ObjectId: id, Text: text}}
}

func TestMemoryAdapter_CreateHasDefaultSlide(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()

	p, err := m.Create(ctx, "Lesson")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(p.Slides) != 1 || p.Slides[0].ObjectId != DefaultSlideID {
		t.Fatalf("Expected one default slide, got %+v", p.Slides)
	}

	got, err := m.Get(ctx, p.PresentationId)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Title != "Lesson" {
		t.Errorf("Expected title 'Lesson', got '%s'", got.Title)
	}
}

func TestMemoryAdapter_Get_NotFound(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")

	_, err := m.Get(context.Background(), "nonexistent-id")
	if !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryAdapter_BatchUpdateAppliesInOrder(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()
	p, _ := m.Create(ctx, "Lesson")

	err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{
		{DeleteObject: &slides.DeleteObjectRequest{ObjectId: DefaultSlideID}},
		createSlide("slide_0"),
		createShape("slide_0_title", "slide_0"),
		insertText("slide_0_title", "Hello"),
		{UpdateTextStyle: &slides.UpdateTextStyleRequest{ObjectId: "slide_0_title", Fields: "bold", Style: &slides.TextStyle{Bold: true}}},
		{CreateImage: &slides.CreateImageRequest{ObjectId: "slide_0_image", Url: "https://images.unsplash.com/a.jpg", ElementProperties: &slides.PageElementProperties{PageObjectId: "slide_0"}}},
	})
	if err != nil {
		t.Fatalf("BatchUpdate failed: %v", err)
	}

	got, _ := m.Get(ctx, p.PresentationId)
	if len(got.Slides) != 1 || got.Slides[0].ObjectId != "slide_0" {
		t.Fatalf("Expected only slide_0, got %d slides", len(got.Slides))
	}
	if n := len(got.Slides[0].PageElements); n != 2 {
		t.Errorf("Expected 2 elements, got %d", n)
	}
	if text, _ := m.Text(p.PresentationId, "slide_0_title"); text != "Hello" {
		t.Errorf("Expected 'Hello', got '%s'", text)
	}
	if len(m.Batches()) != 1 {
		t.Errorf("Expected 1 recorded batch, got %d", len(m.Batches()))
	}
}

func TestMemoryAdapter_BatchUpdateIsAtomic(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()
	p, _ := m.Create(ctx, "Lesson")

	err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{
		createSlide("slide_0"),
		insertText("missing_shape", "x"),
	})
	if !errors.Is(err, adapter.ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest, got %v", err)
	}

	got, _ := m.Get(ctx, p.PresentationId)
	if len(got.Slides) != 1 {
		t.Errorf("Expected failed batch to leave 1 slide, got %d", len(got.Slides))
	}
}

func TestMemoryAdapter_RejectsDuplicateAndMultiOperationRequests(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()
	p, _ := m.Create(ctx, "Lesson")

	if err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{createSlide(DefaultSlideID)}); err == nil {
		t.Error("Expected duplicate object id to fail")
	}

	both := createSlide("slide_1")
	both.DeleteObject = &slides.DeleteObjectRequest{ObjectId: DefaultSlideID}
	if err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{both}); err == nil {
		t.Error("Expected request with two operations to fail")
	}
}

func TestMemoryAdapter_NotesPage(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()
	p, _ := m.Create(ctx, "Lesson")
	m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{createSlide("slide_0")})

	page, err := m.GetPage(ctx, p.PresentationId, "slide_0")
	if err != nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	notes := page.SlideProperties.NotesPage
	if notes == nil || len(notes.PageElements) != 1 {
		t.Fatalf("Expected notes page with one element")
	}
	body := notes.PageElements[0]
	if body.Shape.Placeholder.Type != "BODY" {
		t.Errorf("Expected BODY placeholder, got %s", body.Shape.Placeholder.Type)
	}

	if err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{insertText(body.ObjectId, "Say hi")}); err != nil {
		t.Fatalf("insert notes failed: %v", err)
	}
	if text, ok := m.Text(p.PresentationId, body.ObjectId); !ok || text != "Say hi" {
		t.Errorf("Expected notes 'Say hi', got '%s'", text)
	}

	if _, err := m.GetPage(ctx, p.PresentationId, "nope"); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMemoryAdapter_FailureHooks(t *testing.T) {
	m := NewMemoryAdapter(nil, "", "user1")
	ctx := context.Background()
	p, _ := m.Create(ctx, "Lesson")

	boom := errors.New("boom")
	m.FailBatch = func(call int, _ []*slides.Request) error {
		if call == 1 {
			return boom
		}
		return nil
	}
	m.FailPage = func(pageID string) error {
		if pageID == DefaultSlideID {
			return boom
		}
		return nil
	}

	if err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{createSlide("slide_0")}); !errors.Is(err, boom) {
		t.Errorf("Expected injected failure, got %v", err)
	}
	if err := m.BatchUpdate(ctx, p.PresentationId, []*slides.Request{createSlide("slide_0")}); err != nil {
		t.Errorf("Expected second call to succeed, got %v", err)
	}
	if _, err := m.GetPage(ctx, p.PresentationId, DefaultSlideID); !errors.Is(err, boom) {
		t.Errorf("Expected injected page failure, got %v", err)
	}
}

type fakeDynamo struct {
	items map[string]map[string]types.AttributeValue
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.items[in.Key["pk"].(*types.AttributeValueMemberS).Value]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.items[in.Item["pk"].(*types.AttributeValueMemberS).Value] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestProvider_PersistsAcrossAdapters(t *testing.T) {
	db := &fakeDynamo{items: map[string]map[string]types.AttributeValue{}}
	ctx := context.Background()

	first := NewProvider(db, "DemoPresentations")
	api, _ := first.GetAPI(ctx, &auth.AuthContext{UserID: "demo-user-1"})
	p, err := api.Create(ctx, "Lesson")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	api.BatchUpdate(ctx, p.PresentationId, []*slides.Request{createSlide("slide_0")})

	// A fresh provider, as after a cold start, reads from DynamoDB.
	second := NewProvider(db, "DemoPresentations")
	got, err := second.Adapter("demo-user-1").Get(ctx, p.PresentationId)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got.Slides) != 2 {
		t.Errorf("Expected 2 slides, got %d", len(got.Slides))
	}

	if _, err := second.Adapter("someone-else").Get(ctx, p.PresentationId); !errors.Is(err, adapter.ErrNotFound) {
		t.Errorf("Expected other users to get ErrNotFound, got %v", err)
	}
}
