// Package storagetest holds behavior tests shared by every storage.Store implementation.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mmynk/syndicate/internal/models"
	"github.com/mmynk/syndicate/internal/storage"
)

var errAbort = errors.New("abort")

// Run exercises store against the storage.Store contract.
// The store must be empty when Run is called.
func Run(t *testing.T, store storage.Store) {
	t.Helper()
	ctx := context.Background()

	alice := uuid.New()
	bob := uuid.New()

	t.Run("AppendPayment assigns dense indexes", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			for want := int64(0); want < 3; want++ {
				p := &models.Payment{
					Creator:   alice,
					Receiver:  bob,
					Value:     100 * (want + 1),
					StartTime: 1000,
					Duration:  60,
					VestFrom:  1000,
				}
				if err := st.AppendPayment(ctx, p); err != nil {
					return err
				}
				if p.Index != want {
					t.Errorf("Index = %d, want %d", p.Index, want)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}

		err = store.Tx(ctx, func(st storage.State) error {
			count, err := st.PaymentCount(ctx)
			if err != nil {
				return err
			}
			if count != 3 {
				t.Errorf("PaymentCount = %d, want 3", count)
			}
			p, err := st.GetPayment(ctx, 1)
			if err != nil {
				return err
			}
			if p.Value != 200 || p.Receiver != bob || p.Creator != alice {
				t.Errorf("GetPayment(1) = %+v", p)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("GetPayment returns ErrNotFound out of range", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			for _, idx := range []int64{-1, 3, 99} {
				if _, err := st.GetPayment(ctx, idx); !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("GetPayment(%d) error = %v, want ErrNotFound", idx, err)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("UpdatePayment persists fork lineage", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			child := &models.Payment{
				Creator:     bob,
				Receiver:    alice,
				Value:       40,
				StartTime:   1010,
				Duration:    50,
				VestFrom:    1010,
				IsFork:      true,
				ParentIndex: 0,
			}
			if err := st.AppendPayment(ctx, child); err != nil {
				return err
			}

			parent, err := st.GetPayment(ctx, 0)
			if err != nil {
				return err
			}
			parent.Value -= 40
			parent.PaidToDate = 10
			parent.VestBase = 10
			parent.VestFrom = 1010
			parent.ForkedChildren = append(parent.ForkedChildren, child.Index)
			return st.UpdatePayment(ctx, parent)
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}

		err = store.Tx(ctx, func(st storage.State) error {
			parent, err := st.GetPayment(ctx, 0)
			if err != nil {
				return err
			}
			if parent.Value != 60 || parent.PaidToDate != 10 || parent.VestBase != 10 || parent.VestFrom != 1010 {
				t.Errorf("parent after update = %+v", parent)
			}
			if !parent.IsForked() || len(parent.ForkedChildren) != 1 || parent.ForkedChildren[0] != 3 {
				t.Errorf("parent children = %v, want [3]", parent.ForkedChildren)
			}

			child, err := st.GetPayment(ctx, 3)
			if err != nil {
				return err
			}
			if !child.IsFork || child.ParentIndex != 0 {
				t.Errorf("child lineage = fork:%v parent:%d", child.IsFork, child.ParentIndex)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("Balances default to zero and upsert", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			got, err := st.Balance(ctx, alice)
			if err != nil {
				return err
			}
			if got != 0 {
				t.Errorf("Balance = %d, want 0", got)
			}
			if err := st.SetBalance(ctx, alice, 50); err != nil {
				return err
			}
			if err := st.SetBalance(ctx, alice, 75); err != nil {
				return err
			}
			got, err = st.Balance(ctx, alice)
			if err != nil {
				return err
			}
			if got != 75 {
				t.Errorf("Balance = %d, want 75", got)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("Delegations upsert per owner and delegate", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			d, err := st.GetDelegation(ctx, alice, bob)
			if err != nil {
				return err
			}
			if d.Allowed() {
				t.Errorf("missing delegation should carry no permissions: %+v", d)
			}

			if err := st.SetDelegation(ctx, models.Delegation{Owner: alice, Delegate: bob, CanFork: true, CanSettle: true}); err != nil {
				return err
			}
			d, err = st.GetDelegation(ctx, alice, bob)
			if err != nil {
				return err
			}
			if !d.CanFork || !d.CanSettle {
				t.Errorf("delegation = %+v, want both permissions", d)
			}

			// Owner scoped: the reverse pair is unaffected.
			d, err = st.GetDelegation(ctx, bob, alice)
			if err != nil {
				return err
			}
			if d.Allowed() {
				t.Errorf("reverse delegation = %+v, want none", d)
			}

			return st.SetDelegation(ctx, models.Delegation{Owner: alice, Delegate: bob})
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}

		err = store.Tx(ctx, func(st storage.State) error {
			d, err := st.GetDelegation(ctx, alice, bob)
			if err != nil {
				return err
			}
			if d.Allowed() {
				t.Errorf("revoked delegation = %+v", d)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("Events are sequenced and paged", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			for i := 0; i < 5; i++ {
				e := &models.Event{
					Kind:         models.EventSettled,
					PaymentIndex: 0,
					Participant:  bob,
					Counterparty: alice,
					Amount:       int64(i + 1),
					At:           1000 + int64(i),
				}
				if err := st.AppendEvent(ctx, e); err != nil {
					return err
				}
				if e.Seq != int64(i+1) {
					t.Errorf("Seq = %d, want %d", e.Seq, i+1)
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}

		err = store.Tx(ctx, func(st storage.State) error {
			page, err := st.ListEvents(ctx, 2, 2)
			if err != nil {
				return err
			}
			if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
				t.Fatalf("ListEvents(2, 2) = %v", page)
			}
			if page[0].Kind != models.EventSettled || page[0].Amount != 3 || page[0].Participant != bob {
				t.Errorf("event = %+v", page[0])
			}

			all, err := st.ListEvents(ctx, 0, 0)
			if err != nil {
				return err
			}
			if len(all) != 5 {
				t.Errorf("ListEvents(0, 0) returned %d events, want 5", len(all))
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})

	t.Run("Failed transaction leaves no trace", func(t *testing.T) {
		err := store.Tx(ctx, func(st storage.State) error {
			if err := st.SetBalance(ctx, bob, 999); err != nil {
				return err
			}
			if err := st.AppendPayment(ctx, &models.Payment{
				Creator: bob, Receiver: bob, Value: 1, StartTime: 1, Duration: 1, VestFrom: 1,
			}); err != nil {
				return err
			}
			return errAbort
		})
		if !errors.Is(err, errAbort) {
			t.Fatalf("Tx error = %v, want errAbort", err)
		}

		err = store.Tx(ctx, func(st storage.State) error {
			got, err := st.Balance(ctx, bob)
			if err != nil {
				return err
			}
			if got != 0 {
				t.Errorf("Balance after rollback = %d, want 0", got)
			}
			count, err := st.PaymentCount(ctx)
			if err != nil {
				return err
			}
			if count != 4 {
				t.Errorf("PaymentCount after rollback = %d, want 4", count)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Tx failed: %v", err)
		}
	})
}
