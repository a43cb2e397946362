package mongodb

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

const auditCollection = "audit_logs"

// auditDocument is the stored shape of an audit entry.
type auditDocument struct {
	ID           string    `bson:"_id"`
	UserID       string    `bson:"user_id,omitempty"`
	OwnerKey     string    `bson:"owner_key,omitempty"`
	Action       string    `bson:"action"`
	ResourceType string    `bson:"resource_type"`
	ResourceID   string    `bson:"resource_id,omitempty"`
	Details      string    `bson:"details,omitempty"`
	IPAddress    string    `bson:"ip_address,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toDocument(log *domain.AuditLog) auditDocument {
	doc := auditDocument{
		ID:           log.ID.String(),
		OwnerKey:     log.OwnerKey,
		Action:       string(log.Action),
		ResourceType: log.ResourceType,
		ResourceID:   log.ResourceID,
		Details:      log.Details,
		IPAddress:    log.IPAddress,
		CreatedAt:    log.CreatedAt,
	}
	if log.UserID != nil {
		doc.UserID = log.UserID.String()
	}
	return doc
}

// AuditRepo implements ports.AuditRepository on a MongoDB collection.
type AuditRepo struct {
	collection *mongo.Collection
}

// NewAuditRepo creates an audit repository on dbName.audit_logs.
func NewAuditRepo(client *mongo.Client, dbName string) *AuditRepo {
	return &AuditRepo{collection: client.Database(dbName).Collection(auditCollection)}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	if _, err := r.collection.InsertOne(ctx, toDocument(log)); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
