package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"bloomtrack/backend/internal/domain"
	"bloomtrack/backend/internal/ledger"
	"bloomtrack/backend/internal/store"
	"bloomtrack/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount, profile domain.Profile) (*domain.UserAccount, error) {
	if user.Email == "" || user.PasswordHash == "" {
		return nil, store.ErrInvalidTransaction
	}
	if user.ID == "" {
		user.ID = xid.New("usr")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES ($1,$2,$3,$4)
	`, user.ID, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, owner_name, mobile, shop_name)
		VALUES ($1,$2,$3,$4)
	`, user.ID, profile.OwnerName, profile.Mobile, profile.ShopName)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := user
	return &created, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.ID, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return &user, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID string, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = $2 WHERE id = $1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, owner_name, mobile, shop_name
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&profile.UserID, &profile.OwnerName, &profile.Mobile, &profile.ShopName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile domain.Profile) (*domain.Profile, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET owner_name = $2, mobile = $3, shop_name = $4
		WHERE user_id = $1
	`, profile.UserID, profile.OwnerName, profile.Mobile, profile.ShopName)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	updated := profile
	return &updated, nil
}

const sellerColumns = `id, owner_id, name, mobile, serial_number, address, date, amount_cents, weight_grams, created_at`

func scanSeller(row interface{ Scan(...any) error }) (*domain.Seller, error) {
	var seller domain.Seller
	var mobile, address sql.NullString
	err := row.Scan(&seller.ID, &seller.OwnerID, &seller.Name, &mobile, &seller.SerialNumber,
		&address, &seller.Date, &seller.AmountCents, &seller.WeightGrams, &seller.CreatedAt)
	if err != nil {
		return nil, err
	}
	seller.Mobile = mobile.String
	seller.Address = address.String
	seller.Date = seller.Date.UTC()
	seller.CreatedAt = seller.CreatedAt.UTC()
	return &seller, nil
}

func (s *Store) ListSellers(ctx context.Context, ownerID string) ([]domain.Seller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sellerColumns+`
		FROM sellers
		WHERE owner_id = $1
		ORDER BY serial_number, id
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellers := make([]domain.Seller, 0, 32)
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, *seller)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sellers, nil
}

func (s *Store) GetSeller(ctx context.Context, ownerID string, sellerID string) (*domain.Seller, error) {
	seller, err := scanSeller(s.db.QueryRowContext(ctx, `
		SELECT `+sellerColumns+`
		FROM sellers
		WHERE id = $1 AND owner_id = $2
	`, sellerID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return seller, nil
}

// lockSeller reads the seller's live balance under FOR UPDATE so every
// balance mutation in the transaction sees a consistent snapshot.
func lockSeller(ctx context.Context, tx *sql.Tx, ownerID string, sellerID string) (ledger.Balance, error) {
	var balance ledger.Balance
	err := tx.QueryRowContext(ctx, `
		SELECT amount_cents, weight_grams
		FROM sellers
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, sellerID, ownerID).Scan(&balance.AmountCents, &balance.Grams)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Balance{}, store.ErrNotFound
		}
		return ledger.Balance{}, err
	}
	return balance, nil
}

func setSellerBalance(ctx context.Context, tx *sql.Tx, sellerID string, balance ledger.Balance) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sellers SET amount_cents = $2, weight_grams = $3 WHERE id = $1
	`, sellerID, balance.AmountCents, balance.Grams)
	return err
}

func (s *Store) CreateSeller(ctx context.Context, seller domain.Seller) (*domain.Seller, error) {
	if seller.OwnerID == "" || seller.Name == "" || seller.SerialNumber == "" {
		return nil, store.ErrInvalidTransaction
	}
	if seller.AmountCents < 0 || seller.WeightGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}

	now := time.Now().UTC()
	if seller.ID == "" {
		seller.ID = xid.New("sel")
	}
	if seller.Date.IsZero() {
		seller.Date = now
	}
	seller.CreatedAt = now

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sellers (id, owner_id, name, mobile, serial_number, address, date, amount_cents, weight_grams, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, seller.ID, seller.OwnerID, seller.Name, nullIfEmpty(seller.Mobile), seller.SerialNumber,
		nullIfEmpty(seller.Address), nowDateUTC(seller.Date), seller.AmountCents, seller.WeightGrams, seller.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	// A positive starting balance is itself the first purchase event.
	if seller.AmountCents > 0 || seller.WeightGrams > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO seller_transactions
				(id, seller_id, transaction_date, amount_added_cents, grams_added,
				 previous_amount_cents, previous_grams, new_total_amount_cents, new_total_grams,
				 less_grams, created_at)
			VALUES ($1,$2,$3,$4,$5,0,0,$4,$5,0,$6)
		`, xid.New("txn"), seller.ID, nowDateUTC(seller.Date), seller.AmountCents, seller.WeightGrams, now)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	created := seller
	return &created, nil
}

func (s *Store) UpdateSeller(ctx context.Context, ownerID string, sellerID string, update domain.SellerUpdateRequest) (*domain.Seller, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	seller, err := scanSeller(tx.QueryRowContext(ctx, `
		SELECT `+sellerColumns+`
		FROM sellers
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, sellerID, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if update.Name != nil {
		seller.Name = *update.Name
	}
	if update.Mobile != nil {
		seller.Mobile = *update.Mobile
	}
	if update.SerialNumber != nil {
		seller.SerialNumber = *update.SerialNumber
	}
	if update.Address != nil {
		seller.Address = *update.Address
	}
	if update.Date != nil {
		parsed, err := time.Parse("2006-01-02", *update.Date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		seller.Date = parsed
	}
	if seller.Name == "" || seller.SerialNumber == "" {
		return nil, store.ErrInvalidTransaction
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE sellers
		SET name = $2, mobile = $3, serial_number = $4, address = $5, date = $6
		WHERE id = $1
	`, sellerID, seller.Name, nullIfEmpty(seller.Mobile), seller.SerialNumber,
		nullIfEmpty(seller.Address), nowDateUTC(seller.Date))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return seller, nil
}

func (s *Store) DeleteSeller(ctx context.Context, ownerID string, sellerID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := lockSeller(ctx, tx, ownerID, sellerID); err != nil {
		return err
	}

	// No DB-level cascade: child rows are removed explicitly, allocations first.
	for _, stmt := range []string{
		`DELETE FROM payment_allocations WHERE payment_id IN (SELECT id FROM payments WHERE seller_id = $1)`,
		`DELETE FROM payments WHERE seller_id = $1`,
		`DELETE FROM sold_to_transactions WHERE seller_id = $1`,
		`DELETE FROM seller_transactions WHERE seller_id = $1`,
		`DELETE FROM sale_to_contacts WHERE seller_id = $1`,
		`DELETE FROM sellers WHERE id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, sellerID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) SearchSellersBySerial(ctx context.Context, ownerID string, serial string) ([]domain.Seller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sellerColumns+`
		FROM sellers
		WHERE owner_id = $1 AND serial_number = $2
		ORDER BY serial_number, id
	`, ownerID, serial)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sellers := make([]domain.Seller, 0, 1)
	for rows.Next() {
		seller, err := scanSeller(rows)
		if err != nil {
			return nil, err
		}
		sellers = append(sellers, *seller)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sellers, nil
}

const purchaseColumns = `id, seller_id, transaction_date, amount_added_cents, grams_added,
	previous_amount_cents, previous_grams, new_total_amount_cents, new_total_grams,
	flower_name, less_grams, salesman_name, salesman_mobile, salesman_address, created_at`

func scanPurchase(row interface{ Scan(...any) error }) (*domain.Purchase, error) {
	var p domain.Purchase
	var flower, salesman, salesmanMobile, salesmanAddress sql.NullString
	err := row.Scan(&p.ID, &p.SellerID, &p.Date, &p.AmountAddedCents, &p.GramsAdded,
		&p.PreviousAmountCents, &p.PreviousGrams, &p.NewTotalAmountCents, &p.NewTotalGrams,
		&flower, &p.LessGrams, &salesman, &salesmanMobile, &salesmanAddress, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.FlowerName = flower.String
	p.SalesmanName = salesman.String
	p.SalesmanMobile = salesmanMobile.String
	p.SalesmanAddress = salesmanAddress.String
	p.Date = p.Date.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

func (s *Store) ListPurchases(ctx context.Context, ownerID string, sellerID string) ([]domain.Purchase, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM seller_transactions
		WHERE seller_id = $1
		ORDER BY transaction_date, created_at
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) AddPurchase(ctx context.Context, ownerID string, sellerID string, purchase domain.Purchase) (*domain.Purchase, error) {
	if purchase.AmountAddedCents < 0 || purchase.GramsAdded < 0 || purchase.LessGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if purchase.AmountAddedCents == 0 && purchase.GramsAdded == 0 {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return nil, err
	}
	next := previous.AddPurchase(purchase.AmountAddedCents, purchase.GramsAdded)

	now := time.Now().UTC()
	purchase.ID = xid.New("txn")
	purchase.SellerID = sellerID
	purchase.PreviousAmountCents = previous.AmountCents
	purchase.PreviousGrams = previous.Grams
	purchase.NewTotalAmountCents = next.AmountCents
	purchase.NewTotalGrams = next.Grams
	purchase.CreatedAt = now
	if purchase.Date.IsZero() {
		purchase.Date = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO seller_transactions
			(id, seller_id, transaction_date, amount_added_cents, grams_added,
			 previous_amount_cents, previous_grams, new_total_amount_cents, new_total_grams,
			 flower_name, less_grams, salesman_name, salesman_mobile, salesman_address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, purchase.ID, sellerID, nowDateUTC(purchase.Date), purchase.AmountAddedCents, purchase.GramsAdded,
		purchase.PreviousAmountCents, purchase.PreviousGrams, purchase.NewTotalAmountCents, purchase.NewTotalGrams,
		nullIfEmpty(purchase.FlowerName), purchase.LessGrams, nullIfEmpty(purchase.SalesmanName),
		nullIfEmpty(purchase.SalesmanMobile), nullIfEmpty(purchase.SalesmanAddress), now)
	if err != nil {
		return nil, err
	}

	if err := setSellerBalance(ctx, tx, sellerID, next); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := purchase
	return &created, nil
}

func (s *Store) UpdatePurchase(ctx context.Context, ownerID string, sellerID string, purchaseID string, update domain.PurchaseUpdateRequest) (*domain.Purchase, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	live, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return nil, err
	}

	purchase, err := scanPurchase(tx.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM seller_transactions
		WHERE id = $1 AND seller_id = $2
		FOR UPDATE
	`, purchaseID, sellerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	oldAmount := purchase.AmountAddedCents
	oldGrams := purchase.GramsAdded

	if update.AmountAddedCents != nil {
		purchase.AmountAddedCents = *update.AmountAddedCents
	}
	if update.GramsAdded != nil {
		purchase.GramsAdded = *update.GramsAdded
	}
	if update.FlowerName != nil {
		purchase.FlowerName = *update.FlowerName
	}
	if update.LessGrams != nil {
		purchase.LessGrams = *update.LessGrams
	}
	if update.Date != nil {
		parsed, err := time.Parse("2006-01-02", *update.Date)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		purchase.Date = parsed
	}
	if purchase.AmountAddedCents < 0 || purchase.GramsAdded < 0 || purchase.LessGrams < 0 {
		return nil, store.ErrInvalidTransaction
	}

	// Snapshot keeps its original previous totals; only the adds and the
	// derived new totals change. The live balance moves by the delta.
	prev := ledger.Balance{AmountCents: purchase.PreviousAmountCents, Grams: purchase.PreviousGrams}
	next := prev.AddPurchase(purchase.AmountAddedCents, purchase.GramsAdded)
	purchase.NewTotalAmountCents = next.AmountCents
	purchase.NewTotalGrams = next.Grams

	_, err = tx.ExecContext(ctx, `
		UPDATE seller_transactions
		SET transaction_date = $2, amount_added_cents = $3, grams_added = $4,
		    new_total_amount_cents = $5, new_total_grams = $6, flower_name = $7, less_grams = $8
		WHERE id = $1
	`, purchaseID, nowDateUTC(purchase.Date), purchase.AmountAddedCents, purchase.GramsAdded,
		purchase.NewTotalAmountCents, purchase.NewTotalGrams, nullIfEmpty(purchase.FlowerName), purchase.LessGrams)
	if err != nil {
		return nil, err
	}

	live = live.ApplyDelta(purchase.AmountAddedCents-oldAmount, purchase.GramsAdded-oldGrams)
	if err := setSellerBalance(ctx, tx, sellerID, live); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return purchase, nil
}

func (s *Store) DeletePurchase(ctx context.Context, ownerID string, sellerID string, purchaseID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	live, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return err
	}

	var amountAdded, gramsAdded int64
	err = tx.QueryRowContext(ctx, `
		SELECT amount_added_cents, grams_added
		FROM seller_transactions
		WHERE id = $1 AND seller_id = $2
		FOR UPDATE
	`, purchaseID, sellerID).Scan(&amountAdded, &gramsAdded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM payment_allocations WHERE purchase_id = $1`, purchaseID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seller_transactions WHERE id = $1`, purchaseID); err != nil {
		return err
	}

	live = live.ApplyDelta(-amountAdded, -gramsAdded)
	if err := setSellerBalance(ctx, tx, sellerID, live); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) AssignSalesman(ctx context.Context, ownerID string, purchaseID string, req domain.SalesmanAssignRequest) (*domain.Purchase, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE seller_transactions t
		SET salesman_name = $2, salesman_mobile = $3, salesman_address = $4
		FROM sellers s
		WHERE t.id = $1 AND s.id = t.seller_id AND s.owner_id = $5
	`, purchaseID, nullIfEmpty(req.SalesmanName), nullIfEmpty(req.SalesmanMobile), nullIfEmpty(req.SalesmanAddress), ownerID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	purchase, err := scanPurchase(s.db.QueryRowContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM seller_transactions
		WHERE id = $1
	`, purchaseID))
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

const saleColumns = `id, seller_id, customer_name, customer_mobile, sale_date, grams_sold, amount_sold_cents,
	previous_grams, previous_amount_cents, remaining_grams, remaining_amount_cents, notes, created_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	var mobile, notes sql.NullString
	err := row.Scan(&sale.ID, &sale.SellerID, &sale.CustomerName, &mobile, &sale.SaleDate,
		&sale.GramsSold, &sale.AmountSoldCents, &sale.PreviousGrams, &sale.PreviousAmountCents,
		&sale.RemainingGrams, &sale.RemainingAmountCents, &notes, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.CustomerMobile = mobile.String
	sale.Notes = notes.String
	sale.SaleDate = sale.SaleDate.UTC()
	sale.CreatedAt = sale.CreatedAt.UTC()
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, ownerID string, sellerID string) ([]domain.Sale, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sold_to_transactions
		WHERE seller_id = $1
		ORDER BY sale_date, created_at
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) AddSale(ctx context.Context, ownerID string, sellerID string, sale domain.Sale) (*domain.Sale, error) {
	if sale.GramsSold < 0 || sale.AmountSoldCents < 0 {
		return nil, store.ErrInvalidTransaction
	}
	if sale.GramsSold == 0 && sale.AmountSoldCents == 0 {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	previous, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return nil, err
	}
	if sale.GramsSold > previous.Grams || sale.AmountSoldCents > previous.AmountCents {
		return nil, store.ErrInsufficientStock
	}
	remaining := previous.Deduct(sale.AmountSoldCents, sale.GramsSold)

	now := time.Now().UTC()
	sale.ID = xid.New("sale")
	sale.SellerID = sellerID
	sale.PreviousGrams = previous.Grams
	sale.PreviousAmountCents = previous.AmountCents
	sale.RemainingGrams = remaining.Grams
	sale.RemainingAmountCents = remaining.AmountCents
	sale.CreatedAt = now
	if sale.SaleDate.IsZero() {
		sale.SaleDate = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sold_to_transactions
			(id, seller_id, customer_name, customer_mobile, sale_date, grams_sold, amount_sold_cents,
			 previous_grams, previous_amount_cents, remaining_grams, remaining_amount_cents, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, sale.ID, sellerID, sale.CustomerName, nullIfEmpty(sale.CustomerMobile), nowDateUTC(sale.SaleDate),
		sale.GramsSold, sale.AmountSoldCents, sale.PreviousGrams, sale.PreviousAmountCents,
		sale.RemainingGrams, sale.RemainingAmountCents, nullIfEmpty(sale.Notes), now)
	if err != nil {
		return nil, err
	}

	if err := setSellerBalance(ctx, tx, sellerID, remaining); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := sale
	return &created, nil
}

func (s *Store) UpdateSale(ctx context.Context, ownerID string, sellerID string, saleID string, update domain.SaleUpdateRequest) (*domain.Sale, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sold_to_transactions
		WHERE id = $1 AND seller_id = $2
	`, saleID, sellerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if update.CustomerName != nil {
		sale.CustomerName = *update.CustomerName
	}
	if update.CustomerMobile != nil {
		sale.CustomerMobile = *update.CustomerMobile
	}
	if update.Notes != nil {
		sale.Notes = *update.Notes
	}
	if update.SaleDate != nil {
		parsed, err := time.Parse("2006-01-02", *update.SaleDate)
		if err != nil {
			return nil, store.ErrInvalidTransaction
		}
		sale.SaleDate = parsed
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE sold_to_transactions
		SET customer_name = $2, customer_mobile = $3, sale_date = $4, notes = $5
		WHERE id = $1
	`, saleID, sale.CustomerName, nullIfEmpty(sale.CustomerMobile), nowDateUTC(sale.SaleDate), nullIfEmpty(sale.Notes))
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) DeleteSale(ctx context.Context, ownerID string, sellerID string, saleID string) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	live, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return err
	}

	var gramsSold, amountSold int64
	err = tx.QueryRowContext(ctx, `
		SELECT grams_sold, amount_sold_cents
		FROM sold_to_transactions
		WHERE id = $1 AND seller_id = $2
		FOR UPDATE
	`, saleID, sellerID).Scan(&gramsSold, &amountSold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sold_to_transactions WHERE id = $1`, saleID); err != nil {
		return err
	}

	// Restock: the sold amounts go back onto the seller.
	live = live.ApplyDelta(amountSold, gramsSold)
	if err := setSellerBalance(ctx, tx, sellerID, live); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ListSaleContacts(ctx context.Context, ownerID string, sellerID string) ([]domain.SaleContact, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seller_id, name, mobile, address, updated_at
		FROM sale_to_contacts
		WHERE seller_id = $1
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]domain.SaleContact, 0, 1)
	for rows.Next() {
		var contact domain.SaleContact
		var mobile, address sql.NullString
		if err := rows.Scan(&contact.SellerID, &contact.Name, &mobile, &address, &contact.UpdatedAt); err != nil {
			return nil, err
		}
		contact.Mobile = mobile.String
		contact.Address = address.String
		contact.UpdatedAt = contact.UpdatedAt.UTC()
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (s *Store) SaveSaleContact(ctx context.Context, ownerID string, sellerID string, contact domain.SaleContact) (*domain.SaleContact, error) {
	if contact.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	contact.SellerID = sellerID
	contact.UpdatedAt = time.Now().UTC()

	// Latest contact per seller: upsert on the seller_id primary key.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sale_to_contacts (seller_id, name, mobile, address, updated_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (seller_id)
		DO UPDATE SET name = EXCLUDED.name, mobile = EXCLUDED.mobile, address = EXCLUDED.address, updated_at = EXCLUDED.updated_at
	`, sellerID, contact.Name, nullIfEmpty(contact.Mobile), nullIfEmpty(contact.Address), contact.UpdatedAt)
	if err != nil {
		return nil, err
	}

	saved := contact
	return &saved, nil
}

const paymentColumns = `id, seller_id, paid_at, from_date, to_date, amount_cents, cleared_grams,
	commission_cents, advance_cents, notes, created_at`

func scanPayment(row interface{ Scan(...any) error }) (*domain.Payment, error) {
	var payment domain.Payment
	var notes sql.NullString
	err := row.Scan(&payment.ID, &payment.SellerID, &payment.PaidAt, &payment.FromDate, &payment.ToDate,
		&payment.AmountCents, &payment.ClearedGrams, &payment.CommissionCents, &payment.AdvanceCents,
		&notes, &payment.CreatedAt)
	if err != nil {
		return nil, err
	}
	payment.Notes = notes.String
	payment.PaidAt = payment.PaidAt.UTC()
	payment.FromDate = payment.FromDate.UTC()
	payment.ToDate = payment.ToDate.UTC()
	payment.CreatedAt = payment.CreatedAt.UTC()
	return &payment, nil
}

func (s *Store) ListPayments(ctx context.Context, ownerID string, sellerID string) ([]domain.Payment, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE seller_id = $1
		ORDER BY paid_at, created_at
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range payments {
		allocations, err := s.allocationsForPayment(ctx, payments[i].ID)
		if err != nil {
			return nil, err
		}
		payments[i].Allocations = allocations
	}
	return payments, nil
}

func (s *Store) GetPayment(ctx context.Context, ownerID string, sellerID string, paymentID string) (*domain.Payment, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	payment, err := scanPayment(s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1 AND seller_id = $2
	`, paymentID, sellerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	allocations, err := s.allocationsForPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	payment.Allocations = allocations
	return payment, nil
}

func (s *Store) allocationsForPayment(ctx context.Context, paymentID string) ([]domain.PaymentAllocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_id, purchase_id, grams, amount_cents
		FROM payment_allocations
		WHERE payment_id = $1
		ORDER BY purchase_id
	`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocations := make([]domain.PaymentAllocation, 0, 4)
	for rows.Next() {
		var alloc domain.PaymentAllocation
		if err := rows.Scan(&alloc.PaymentID, &alloc.PurchaseID, &alloc.Grams, &alloc.AmountCents); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *Store) AddPayment(ctx context.Context, ownerID string, sellerID string, input store.PaymentInput) (*domain.Payment, error) {
	if input.FromDate.IsZero() || input.ToDate.IsZero() || input.ToDate.Before(input.FromDate) {
		return nil, store.ErrInvalidTransaction
	}
	if input.AmountCents < 0 || input.ClearedGrams < 0 || input.CommissionCents < 0 || input.AdvanceCents < 0 {
		return nil, store.ErrInvalidTransaction
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	live, err := lockSeller(ctx, tx, ownerID, sellerID)
	if err != nil {
		return nil, err
	}

	inRange, err := purchasesInRangeTx(ctx, tx, sellerID, input.FromDate, input.ToDate)
	if err != nil {
		return nil, err
	}
	prior, err := allocationsForSellerTx(ctx, tx, sellerID)
	if err != nil {
		return nil, err
	}

	// Zero defaults to the full remaining; anything above the remaining is
	// clamped so the recorded totals always equal the sum of the allocations.
	remainingGrams, remainingAmount := ledger.Remaining(inRange, prior)
	amount := input.AmountCents
	if amount == 0 || amount > remainingAmount {
		amount = remainingAmount
	}
	grams := input.ClearedGrams
	if grams == 0 || grams > remainingGrams {
		grams = remainingGrams
	}
	deductions := input.CommissionCents + input.AdvanceCents
	if deductions > 0 {
		if amount > deductions {
			amount -= deductions
		} else {
			amount = 0
		}
	}
	if amount == 0 && grams == 0 {
		return nil, store.ErrInvalidTransaction
	}

	now := time.Now().UTC()
	payment := domain.Payment{
		ID:              xid.New("pay"),
		SellerID:        sellerID,
		PaidAt:          input.PaidAt,
		FromDate:        input.FromDate,
		ToDate:          input.ToDate,
		AmountCents:     amount,
		ClearedGrams:    grams,
		CommissionCents: input.CommissionCents,
		AdvanceCents:    input.AdvanceCents,
		Notes:           input.Notes,
		CreatedAt:       now,
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments
			(id, seller_id, paid_at, from_date, to_date, amount_cents, cleared_grams,
			 commission_cents, advance_cents, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, payment.ID, sellerID, payment.PaidAt, nowDateUTC(payment.FromDate), nowDateUTC(payment.ToDate),
		payment.AmountCents, payment.ClearedGrams, payment.CommissionCents, payment.AdvanceCents,
		nullIfEmpty(payment.Notes), now)
	if err != nil {
		return nil, err
	}

	allocations := ledger.Allocate(inRange, prior, grams, amount)
	for i := range allocations {
		allocations[i].PaymentID = payment.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_allocations (payment_id, purchase_id, grams, amount_cents)
			VALUES ($1,$2,$3,$4)
		`, payment.ID, allocations[i].PurchaseID, allocations[i].Grams, allocations[i].AmountCents)
		if err != nil {
			return nil, err
		}
	}
	payment.Allocations = allocations

	live = live.Deduct(amount, grams)
	if err := setSellerBalance(ctx, tx, sellerID, live); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := payment
	return &created, nil
}

func purchasesInRangeTx(ctx context.Context, tx *sql.Tx, sellerID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM seller_transactions
		WHERE seller_id = $1 AND transaction_date >= $2 AND transaction_date <= $3
		ORDER BY transaction_date, created_at
	`, sellerID, nowDateUTC(from), nowDateUTC(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func allocationsForSellerTx(ctx context.Context, tx *sql.Tx, sellerID string) ([]domain.PaymentAllocation, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.payment_id, a.purchase_id, a.grams, a.amount_cents
		FROM payment_allocations a
		JOIN payments p ON p.id = a.payment_id
		WHERE p.seller_id = $1
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocations := make([]domain.PaymentAllocation, 0, 32)
	for rows.Next() {
		var alloc domain.PaymentAllocation
		if err := rows.Scan(&alloc.PaymentID, &alloc.PurchaseID, &alloc.Grams, &alloc.AmountCents); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *Store) ListPurchasesInRange(ctx context.Context, ownerID string, sellerID string, from time.Time, to time.Time) ([]domain.Purchase, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM seller_transactions
		WHERE seller_id = $1 AND transaction_date >= $2 AND transaction_date <= $3
		ORDER BY transaction_date, created_at
	`, sellerID, nowDateUTC(from), nowDateUTC(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

func (s *Store) ListAllocationsForSeller(ctx context.Context, ownerID string, sellerID string) ([]domain.PaymentAllocation, error) {
	if _, err := s.GetSeller(ctx, ownerID, sellerID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.payment_id, a.purchase_id, a.grams, a.amount_cents
		FROM payment_allocations a
		JOIN payments p ON p.id = a.payment_id
		WHERE p.seller_id = $1
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	allocations := make([]domain.PaymentAllocation, 0, 32)
	for rows.Next() {
		var alloc domain.PaymentAllocation
		if err := rows.Scan(&alloc.PaymentID, &alloc.PurchaseID, &alloc.Grams, &alloc.AmountCents); err != nil {
			return nil, err
		}
		allocations = append(allocations, alloc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return allocations, nil
}

func (s *Store) EODReport(ctx context.Context, ownerID string, date time.Time) (domain.EODReport, error) {
	day := nowDateUTC(date)
	report := domain.EODReport{Date: day.Format("2006-01-02"), Rows: make([]domain.EODReportRow, 0, 32)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.serial_number,
		       COALESCE(SUM(t.grams_added), 0), COALESCE(SUM(t.amount_added_cents), 0)
		FROM sellers s
		LEFT JOIN seller_transactions t ON t.seller_id = s.id AND t.transaction_date = $2
		WHERE s.owner_id = $1
		GROUP BY s.id, s.name, s.serial_number
		ORDER BY s.serial_number, s.id
	`, ownerID, day)
	if err != nil {
		return domain.EODReport{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.EODReportRow
		if err := rows.Scan(&row.SellerID, &row.SellerName, &row.SerialNumber, &row.TotalGrams, &row.TotalAmountCents); err != nil {
			return domain.EODReport{}, err
		}
		report.TotalGrams += row.TotalGrams
		report.TotalAmountCents += row.TotalAmountCents
		report.Rows = append(report.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return domain.EODReport{}, err
	}
	return report, nil
}

func (s *Store) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

func (s *Store) Inspect(ctx context.Context) (domain.DBInspect, error) {
	inspect := domain.DBInspect{Driver: "postgres", Tables: make(map[string]int64, 8)}
	for _, table := range []string{
		"users", "profiles", "sellers", "seller_transactions",
		"sold_to_transactions", "sale_to_contacts", "payments", "payment_allocations",
	} {
		var count int64
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			return domain.DBInspect{}, err
		}
		inspect.Tables[table] = count
	}
	return inspect, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
