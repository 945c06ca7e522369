package db

import (
	"context"
)

// CreateNotificationsBatchTx inserts a batch of notifications inside one
// transaction: either every row is created or none are.
func (store *SQLStore) CreateNotificationsBatchTx(ctx context.Context, args []CreateNotificationParams) ([]Notification, error) {
	created := make([]Notification, 0, len(args))

	err := store.ExecTx(ctx, func(qTx *Queries) error {
		for _, arg := range args {
			n, err := qTx.CreateNotification(ctx, arg)
			if err != nil {
				return err
			}

			created = append(created, n)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}
