package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/leafpress/go-bookstore/internal/database"
	"github.com/leafpress/go-bookstore/internal/models"
)

// recomputeRating rewrites the book's derived rating fields from scratch.
// Full recompute on every mutation is fine at review volumes; replies carry
// no rating and are excluded by the parent_id filter.
func recomputeRating(ctx context.Context, tx *sql.Tx, bookID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE books
		 SET rating = COALESCE(
		         (SELECT ROUND(AVG(rating), 2) FROM reviews WHERE book_id = $1 AND parent_id IS NULL), 0),
		     num_reviews =
		         (SELECT COUNT(*) FROM reviews WHERE book_id = $1 AND parent_id IS NULL),
		     updated_at = NOW()
		 WHERE id = $1`,
		bookID)
	if err != nil {
		return fmt.Errorf("recompute rating: %w", err)
	}
	return nil
}

func AddReview(ctx context.Context, db *sql.DB, bookID, userID int64, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	var review *models.Review

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM books WHERE id = $1)`, bookID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check book exists: %w", err)
		}
		if !exists {
			return database.ErrBookNotFound
		}

		review = &models.Review{}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO reviews (book_id, user_id, rating, comment, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, NOW(), NOW())
			 RETURNING id, book_id, user_id, parent_id, rating, comment, created_at, updated_at`,
			bookID, userID, rating, comment).Scan(
			&review.ID,
			&review.BookID,
			&review.UserID,
			&review.ParentID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
			&review.UpdatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return database.ErrDuplicateReview
			}
			return fmt.Errorf("create review: %w", err)
		}

		return recomputeRating(ctx, tx, bookID)
	})

	if err != nil {
		return nil, err
	}

	return review, nil
}

func UpdateReview(ctx context.Context, db *sql.DB, reviewID, userID int64, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("rating must be between 1 and 5")
	}

	var review *models.Review

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		review = &models.Review{}
		err := tx.QueryRowContext(ctx,
			`UPDATE reviews
			 SET rating = $1, comment = $2, updated_at = NOW()
			 WHERE id = $3 AND user_id = $4 AND parent_id IS NULL
			 RETURNING id, book_id, user_id, parent_id, rating, comment, created_at, updated_at`,
			rating, comment, reviewID, userID).Scan(
			&review.ID,
			&review.BookID,
			&review.UserID,
			&review.ParentID,
			&review.Rating,
			&review.Comment,
			&review.CreatedAt,
			&review.UpdatedAt,
		)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrReviewNotFound
			}
			return fmt.Errorf("update review: %w", err)
		}

		return recomputeRating(ctx, tx, review.BookID)
	})

	if err != nil {
		return nil, err
	}

	return review, nil
}

func DeleteReview(ctx context.Context, db *sql.DB, reviewID, userID int64) error {
	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var bookID int64
		err := tx.QueryRowContext(ctx,
			`DELETE FROM reviews
			 WHERE id = $1 AND user_id = $2 AND parent_id IS NULL
			 RETURNING book_id`,
			reviewID, userID).Scan(&bookID)
		if err != nil {
			if err == sql.ErrNoRows {
				return database.ErrReviewNotFound
			}
			return fmt.Errorf("delete review: %w", err)
		}

		return recomputeRating(ctx, tx, bookID)
	})
}

// AddReply attaches a threaded reply under an existing top-level review.
// Replies carry no rating and never touch the book's aggregate.
func AddReply(ctx context.Context, db *sql.DB, parentID, userID int64, comment string) (*models.Review, error) {
	reply := &models.Review{}

	var bookID int64
	err := db.QueryRowContext(ctx,
		`SELECT book_id FROM reviews WHERE id = $1 AND parent_id IS NULL`,
		parentID).Scan(&bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrReviewNotFound
		}
		return nil, fmt.Errorf("get parent review: %w", err)
	}

	err = db.QueryRowContext(ctx,
		`INSERT INTO reviews (book_id, user_id, parent_id, rating, comment, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
		 RETURNING id, book_id, user_id, parent_id, rating, comment, created_at, updated_at`,
		bookID, userID, parentID, comment).Scan(
		&reply.ID,
		&reply.BookID,
		&reply.UserID,
		&reply.ParentID,
		&reply.Rating,
		&reply.Comment,
		&reply.CreatedAt,
		&reply.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}

	return reply, nil
}

// GetBookReviews returns top-level reviews with their replies nested.
func GetBookReviews(ctx context.Context, db *sql.DB, bookID int64) ([]models.Review, error) {
	query := `
		SELECT r.id, r.book_id, r.user_id, u.name, r.parent_id, r.rating, r.comment,
			r.created_at, r.updated_at
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.book_id = $1
		ORDER BY r.created_at`

	rows, err := db.QueryContext(ctx, query, bookID)
	if err != nil {
		return nil, fmt.Errorf("get reviews: %w", err)
	}
	defer rows.Close()

	var all []models.Review
	for rows.Next() {
		var r models.Review
		err := rows.Scan(
			&r.ID,
			&r.BookID,
			&r.UserID,
			&r.UserName,
			&r.ParentID,
			&r.Rating,
			&r.Comment,
			&r.CreatedAt,
			&r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		all = append(all, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	byParent := make(map[int64][]models.Review)
	var top []models.Review
	for _, r := range all {
		if r.ParentID != nil {
			byParent[*r.ParentID] = append(byParent[*r.ParentID], r)
		} else {
			top = append(top, r)
		}
	}
	for i := range top {
		top[i].Replies = byParent[top[i].ID]
	}

	return top, nil
}
