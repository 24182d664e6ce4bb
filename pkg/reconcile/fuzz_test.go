package reconcile

import "testing"

func FuzzReconcile(f *testing.F) {
	f.Add([]byte{0, 1, 1, 0, 1}, []byte{0, 1, 0, 0, 1}, 4, 2, false)
	f.Add([]byte{}, []byte{}, 16, 4, true)
	f.Add([]byte{1, 1, 1, 1, 1, 1, 1, 1, 1}, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0}, 3, 1, true)

	f.Fuzz(func(t *testing.T, a, b []byte, blockSize, rounds int, bisect bool) {
		if blockSize <= 0 || blockSize > 256 || rounds < 0 || rounds > 8 {
			return
		}
		n := min(len(a), len(b))
		sender, receiver := make([]uint8, n), make([]uint8, n)
		for i := 0; i < n; i++ {
			sender[i], receiver[i] = a[i]&1, b[i]&1
		}
		strategy := StrategyFirstFlip
		if bisect {
			strategy = StrategyBisect
		}

		res, err := Reconcile(sender, receiver, WithBlockSize(blockSize), WithMaxRounds(rounds), WithStrategy(strategy))
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Corrected) != n {
			t.Fatalf("corrected length %d, want %d", len(res.Corrected), n)
		}
		blocks := (n + blockSize - 1) / blockSize
		if res.LeakageBits < blocks*rounds {
			t.Errorf("leakage %d below the %d disclosed block parities", res.LeakageBits, blocks*rounds)
		}
		if strategy == StrategyFirstFlip && res.LeakageBits != blocks*rounds {
			t.Errorf("first-flip leakage %d, want %d", res.LeakageBits, blocks*rounds)
		}
		if rounds > 0 {
			for start := 0; start < n; start += blockSize {
				end := min(start+blockSize, n)
				if Parity(sender[start:end]) != Parity(res.Corrected[start:end]) {
					t.Fatalf("block %d parity still differs", start/blockSize)
				}
			}
		}
	})
}
