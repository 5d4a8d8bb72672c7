package security

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		statement string
		want      StatementClass
	}{
		{"SELECT * FROM orders", ClassRead},
		{"  with cte as (select 1) select * from cte", ClassRead},
		{"INSERT INTO orders (id) VALUES (1)", ClassWrite},
		{"update orders set status = 'shipped'", ClassWrite},
		{"DROP TABLE orders", ClassAdministrative},
		{"GRANT SELECT ON orders TO analyst", ClassAdministrative},
		{"", ClassAdministrative},
	}

	for _, tt := range tests {
		if got := Classify(tt.statement); got != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.statement, got, tt.want)
		}
	}
}

func TestCheckQuery_RejectsMultipleStatements(t *testing.T) {
	_, err := CheckQuery("SELECT 1; SELECT 2", nil, []string{"read"})
	if err == nil {
		t.Fatal("expected error for multiple statements")
	}
}

func TestCheckQuery_RejectsDisallowedClass(t *testing.T) {
	_, err := CheckQuery("DELETE FROM orders", nil, []string{"read"})
	if err == nil {
		t.Fatal("expected error for a write statement with only read permission")
	}
}

func TestCheckQuery_AllowsPermittedClass(t *testing.T) {
	result, err := CheckQuery("SELECT * FROM orders WHERE id = {{id}}", map[string]any{"id": "42"}, []string{"read"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Class != ClassRead {
		t.Errorf("expected read class, got %q", result.Class)
	}
}

func TestCheckQuery_RejectsInjectionAttempt(t *testing.T) {
	_, err := CheckQuery("SELECT * FROM orders WHERE name = {{name}}",
		map[string]any{"name": "'; DROP TABLE orders--"}, []string{"read"})
	if err == nil {
		t.Fatal("expected error for injection attempt in parameter")
	}
}
