package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firespoon/sandchat/api/domain"
)

// setupMockContext routes store calls through the mock: conn(ctx) prefers a
// querier stored under the transaction key.
func setupMockContext(mock pgxmock.PgxPoolIface) context.Context {
	return context.WithValue(context.Background(), txKey{}, mock)
}

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store, context.Context) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, &Store{pool: nil}, setupMockContext(mock)
}

func expectationsMet(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessage(t *testing.T) {
	mock, s, ctx := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO messages").
		WithArgs(pgxmock.AnyArg(), "conv_1", domain.RoleUser, "hello", (*string)(nil), (*string)(nil), (*int64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	msg, err := s.CreateMessage(ctx, "conv_1", domain.RoleUser, "hello", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "conv_1", msg.ConversationID)
	assert.Equal(t, domain.RoleUser, msg.Role)
	assert.Equal(t, now, msg.CreatedAt)
	assert.NotEmpty(t, msg.ID)

	expectationsMet(t, mock)
}

func TestGetMessageNotFound(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM messages WHERE id").
		WithArgs("msg_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetMessage(ctx, "msg_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestDeleteMessagesAfterReturnsRowCount(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectExec("DELETE FROM messages").
		WithArgs("conv_1", "msg_2").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := s.DeleteMessagesAfter(ctx, "conv_1", "msg_2")
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	expectationsMet(t, mock)
}

func TestCountMessages(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("conv_1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4)))

	count, err := s.CountMessages(ctx, "conv_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	expectationsMet(t, mock)
}

func conversationRow(conv *domain.Conversation) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "title", "provider", "model_name", "image_provider",
		"image_model", "system_prompt_override", "deep_thinking", "share_token",
		"created_at", "updated_at",
	}).AddRow(
		conv.ID, conv.UserID, conv.Title, conv.Provider, conv.ModelName,
		conv.ImageProvider, conv.ImageModel, conv.SystemPromptOverride,
		conv.DeepThinking, conv.ShareToken, conv.CreatedAt, conv.UpdatedAt,
	)
}

func TestGetConversationEnforcesOwnership(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE id").
		WithArgs("conv_1", "user_2").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetConversation(ctx, "conv_1", "user_2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestGetConversation(t *testing.T) {
	mock, s, ctx := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE id").
		WithArgs("conv_1", "user_1").
		WillReturnRows(conversationRow(&domain.Conversation{
			ID: "conv_1", UserID: "user_1", Title: "Test",
			CreatedAt: now, UpdatedAt: now,
		}))

	conv, err := s.GetConversation(ctx, "conv_1", "user_1")
	require.NoError(t, err)
	assert.Equal(t, "Test", conv.Title)
	assert.False(t, conv.DeepThinking)

	expectationsMet(t, mock)
}

func TestUpdateConversationMissingRow(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectExec("UPDATE conversations").
		WithArgs("conv_gone", "user_1", "Title", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateConversation(ctx, &domain.Conversation{
		ID: "conv_gone", UserID: "user_1", Title: "Title",
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestSetShareTokenConflict(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectExec("UPDATE conversations SET share_token").
		WithArgs("conv_1", "user_1", "tok").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetShareToken(ctx, "conv_1", "user_1", "tok")
	assert.ErrorIs(t, err, domain.ErrConflict)

	expectationsMet(t, mock)
}

func providerRow(p *domain.Provider) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "user_id", "provider", "api_key_encrypted", "endpoint_url",
		"model_name", "models", "image_models", "is_default", "created_at",
	}).AddRow(
		p.ID, p.UserID, p.Provider, p.APIKeyEncrypted, p.EndpointURL,
		p.ModelName, p.Models, p.ImageModels, p.IsDefault, p.CreatedAt,
	)
}

func TestUpsertProviderClearsOtherDefaults(t *testing.T) {
	mock, s, ctx := newMock(t)
	now := time.Now().UTC()

	mock.ExpectExec("UPDATE user_providers SET is_default = FALSE").
		WithArgs("user_1", "anthropic").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	mock.ExpectQuery("INSERT INTO user_providers").
		WithArgs(pgxmock.AnyArg(), "user_1", "anthropic", "ciphertext", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), true).
		WillReturnRows(providerRow(&domain.Provider{
			ID: "prov_1", UserID: "user_1", Provider: "anthropic",
			APIKeyEncrypted: "ciphertext", IsDefault: true, CreatedAt: now,
		}))

	p, err := s.UpsertProvider(ctx, &domain.Provider{
		UserID: "user_1", Provider: "anthropic",
		APIKeyEncrypted: "ciphertext", IsDefault: true,
	})
	require.NoError(t, err)
	assert.True(t, p.IsDefault)

	expectationsMet(t, mock)
}

func TestUpsertProviderNonDefaultSkipsClear(t *testing.T) {
	mock, s, ctx := newMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO user_providers").
		WithArgs(pgxmock.AnyArg(), "user_1", "openai", "ct", (*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil), false).
		WillReturnRows(providerRow(&domain.Provider{
			ID: "prov_2", UserID: "user_1", Provider: "openai",
			APIKeyEncrypted: "ct", CreatedAt: now,
		}))

	_, err := s.UpsertProvider(ctx, &domain.Provider{
		UserID: "user_1", Provider: "openai", APIKeyEncrypted: "ct",
	})
	require.NoError(t, err)

	expectationsMet(t, mock)
}

func TestGetDefaultProviderNone(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM user_providers").
		WithArgs("user_1").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDefaultProvider(ctx, "user_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	expectationsMet(t, mock)
}

func TestDeleteRefreshTokenByHash(t *testing.T) {
	mock, s, ctx := newMock(t)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash").
		WithArgs("hash_abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := s.DeleteRefreshTokenByHash(ctx, "hash_abc")
	require.NoError(t, err)
	assert.True(t, deleted)

	mock.ExpectExec("DELETE FROM refresh_tokens WHERE token_hash").
		WithArgs("hash_abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err = s.DeleteRefreshTokenByHash(ctx, "hash_abc")
	require.NoError(t, err)
	assert.False(t, deleted)

	expectationsMet(t, mock)
}
