package txn

import "testing"

func TestVisibilityScenario(t *testing.T) {
	m := NewManager()
	oracle := m.StatusOracle()

	a, _ := m.Start() // inserts R
	b, _ := m.Start() // started before A commits
	if err := m.Commit(a); err != nil {
		t.Fatalf("commit a: %v", err)
	}
	c, _ := m.Start() // started after A commits

	visB, err := Visible(b, a, 0, oracle)
	if err != nil {
		t.Fatalf("Visible(b): %v", err)
	}
	if visB {
		t.Fatal("b should not see R (b started before A)")
	}

	visC, err := Visible(c, a, 0, oracle)
	if err != nil {
		t.Fatalf("Visible(c): %v", err)
	}
	if !visC {
		t.Fatal("c should see R")
	}

	d, _ := m.Start()
	if err := m.Commit(d); err != nil {
		t.Fatalf("commit d: %v", err)
	}
	// D deletes R: max = d.
	e, _ := m.Start()
	visE, err := Visible(e, a, d, oracle)
	if err != nil {
		t.Fatalf("Visible(e): %v", err)
	}
	if visE {
		t.Fatal("e should not see R (deleted by committed d before e started)")
	}

	visC2, err := Visible(c, a, d, oracle)
	if err != nil {
		t.Fatalf("Visible(c2): %v", err)
	}
	if !visC2 {
		t.Fatal("c should still see R (c's id predates d)")
	}
}

func TestVisibilityOwnInsertAndDelete(t *testing.T) {
	m := NewManager()
	oracle := m.StatusOracle()
	a, _ := m.Start()

	vis, err := Visible(a, a, 0, oracle)
	if err != nil || !vis {
		t.Fatalf("own insert should be visible: vis=%v err=%v", vis, err)
	}

	vis2, err := Visible(a, a, a, oracle)
	if err != nil || vis2 {
		t.Fatalf("own delete should hide the row: vis=%v err=%v", vis2, err)
	}
}

func TestVisibilityUncommittedInsertInvisibleToOthers(t *testing.T) {
	m := NewManager()
	oracle := m.StatusOracle()
	a, _ := m.Start()
	b, _ := m.Start()

	vis, err := Visible(b, a, 0, oracle)
	if err != nil {
		t.Fatalf("Visible: %v", err)
	}
	if vis {
		t.Fatal("b should not see a row inserted by an in-progress transaction")
	}
}

func TestVisibilityAbortedDeleteStillVisible(t *testing.T) {
	m := NewManager()
	oracle := m.StatusOracle()
	a, _ := m.Start()
	m.Commit(a)
	d, _ := m.Start()
	m.Abort(d)
	e, _ := m.Start()

	vis, err := Visible(e, a, d, oracle)
	if err != nil {
		t.Fatalf("Visible: %v", err)
	}
	if !vis {
		t.Fatal("a row deleted by an aborted transaction should remain visible")
	}
}
