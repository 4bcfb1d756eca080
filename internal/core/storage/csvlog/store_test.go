package csvlog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var runAt = time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)

func obs(id, name, price string) v1.Observation {
	return v1.Observation{
		ObservedAt: runAt,
		Source:     "Kilian",
		Name:       name,
		Price:      decimal.RequireFromString(price),
		Identifier: id,
		Link:       "https://shop.example.com/" + id + ".html",
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStore_LoadMissingFileIsEmpty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "price_history.csv"))

	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Observations)
	require.Empty(t, res.Corrupt)
	require.Equal(t, storage.SchemaV2, res.SchemaVersion)
}

func TestStore_RoundTripWithDelimitersAndQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	store := New(path)

	in := []v1.Observation{
		obs("A", `Kilian "Black Phantom", 50ml`, "189.99"),
		{
			ObservedAt: runAt,
			Source:     `Brand, "Quoted"`,
			Name:       "Line\nbreak",
			Price:      decimal.RequireFromString("50"),
			Identifier: `id,with"quote`,
			Link:       "https://shop.example.com/b.html?x=1,2",
			Image:      "https://img.example.com/b.jpg",
		},
	}
	require.NoError(t, store.Append(context.Background(), in))

	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Corrupt)
	require.Len(t, res.Observations, len(in))

	for i, want := range in {
		got := res.Observations[i]
		require.True(t, want.ObservedAt.Equal(got.ObservedAt), "timestamp %v != %v", want.ObservedAt, got.ObservedAt)
		require.Equal(t, want.Source, got.Source)
		require.Equal(t, want.Name, got.Name)
		require.True(t, want.Price.Equal(got.Price))
		require.Equal(t, want.Identifier, got.Identifier)
		require.Equal(t, want.Link, got.Link)
		require.Equal(t, want.Image, got.Image)
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "date,brand,name,price,identifier,link,image\n"))
	require.Contains(t, string(raw), `"Kilian ""Black Phantom"", 50ml",189.99,"A"`)
}

func TestStore_AppendIsACensus(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "price_history.csv"))
	ctx := context.Background()

	batch := []v1.Observation{obs("A", "Item A", "100"), obs("B", "Item B", "50")}
	require.NoError(t, store.Append(ctx, batch))
	require.NoError(t, store.Append(ctx, batch))

	res, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, res.Observations, 4, "identical batches are still logged in full")
}

func TestStore_TolerantLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")

	var b strings.Builder
	b.WriteString("date,brand,name,price,identifier,link,image\n")
	for i := 0; i < 9; i++ {
		if i == 4 {
			b.WriteString(`"2026-03-01 09:00:00","Kilian","broken row",not-a-price,"X","https://x","",extra` + "\n")
		}
		fmt.Fprintf(&b, "\"2026-03-01 09:00:00\",\"Kilian\",\"Item %d\",%d,\"ID-%d\",\"https://shop.example.com/%d\",\"\"\n", i, 100+i, i, i)
	}
	writeFile(t, path, b.String())

	res, err := New(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Observations, 9)
	require.Len(t, res.Corrupt, 1)
	require.Equal(t, 6, res.Corrupt[0].Line)
}

func TestStore_CorruptRowsAreReportedByReason(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	writeFile(t, path, strings.Join([]string{
		"date,brand,name,price,identifier,link,image",
		`"yesterday","Kilian","bad date",10,"A","https://a",""`,
		`"2026-03-01 09:00:00","Kilian","negative",-5,"B","https://b",""`,
		`"2026-03-01 09:00:00","Kilian","short row"`,
		`"2026-03-01 09:00:00","Kilian","good",12.5,"C","https://c",""`,
	}, "\n")+"\n")

	res, err := New(path).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Observations, 1)
	require.Equal(t, "C", res.Observations[0].Identifier)
	require.Len(t, res.Corrupt, 3)
	require.Contains(t, res.Corrupt[0].Reason, "timestamp")
	require.Contains(t, res.Corrupt[1].Reason, "negative")
	require.Contains(t, res.Corrupt[2].Reason, "columns")
}

func TestStore_LegacySKULayoutWithBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	writeFile(t, path, "\ufeffdate,brand,name,price,sku,link\n"+
		"2026-01-05 10:00,킬리안 (Kilian),Angels Share,245.0,KL-1,https://shop.example.com/as.html\n"+
		"2026-01-06 10:00,킬리안 (Kilian),No Sku,0.0,,https://shop.example.com/ns.html\n")

	store := New(path)
	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.SchemaV1, res.SchemaVersion)
	require.Len(t, res.Observations, 2)
	require.Equal(t, "KL-1", res.Observations[0].Identifier)
	require.Equal(t, "킬리안 (Kilian)", res.Observations[0].Source)
	require.Equal(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), res.Observations[0].ObservedAt)
	require.Equal(t, "https://shop.example.com/ns.html", res.Observations[1].Identifier, "identifier back-filled from link")
	require.True(t, res.Observations[1].PriceUnknown)

	// The first append upgrades the file to the canonical layout, values unchanged.
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("KL-2", "Moonlight", "199")}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, []string{
		"date,brand,name,price,identifier,link,image",
		`"2026-01-05 10:00","킬리안 (Kilian)","Angels Share",245.0,"KL-1","https://shop.example.com/as.html",""`,
		`"2026-01-06 10:00","킬리안 (Kilian)","No Sku",0.0,"","https://shop.example.com/ns.html",""`,
		`"2026-03-01 09:30:15","Kilian","Moonlight",199,"KL-2","https://shop.example.com/KL-2.html",""`,
	}, lines)

	res, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.SchemaV2, res.SchemaVersion)
	require.Len(t, res.Observations, 3)
	require.Empty(t, res.Corrupt)
	require.Equal(t, "KL-1", res.Observations[0].Identifier)
	require.Equal(t, "KL-2", res.Observations[2].Identifier)
}

func TestStore_LegacyURLLayoutWithoutIdentifier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	writeFile(t, path, "date,name,price,url\n"+
		"2025-12-01,톰포드 오드우드,320.5,https://shop.example.com/oud-wood.html\n"+
		"2025-12-02,unkeyed,300,\n")

	res, err := New(path).Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.SchemaV0, res.SchemaVersion)
	require.Len(t, res.Observations, 2)
	require.Equal(t, "https://shop.example.com/oud-wood.html", res.Observations[0].Identifier)
	require.Empty(t, res.Observations[0].Source)
	require.Empty(t, res.Observations[1].Identifier, "row without identifier or link cannot be keyed")
}

func TestStore_AppendToURLLayoutKeepsIdentifierAndSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	legacy := "date,name,price,url\n" +
		"2025-12-01,톰포드 오드우드,320.5,https://shop.example.com/oud-wood.html\n"
	writeFile(t, path, legacy)

	store := New(path)
	appended := obs("SKU-1", "Black Phantom", "50")
	appended.Image = "https://img.example.com/SKU-1.jpg"
	require.NoError(t, store.Append(context.Background(), []v1.Observation{appended}))

	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, storage.SchemaV2, res.SchemaVersion)
	require.Empty(t, res.Corrupt)
	require.Len(t, res.Observations, 2)

	old := res.Observations[0]
	require.Equal(t, "https://shop.example.com/oud-wood.html", old.Identifier)
	require.Equal(t, "톰포드 오드우드", old.Name)
	require.True(t, decimal.RequireFromString("320.5").Equal(old.Price))
	require.Empty(t, old.Source)

	got := res.Observations[1]
	require.Equal(t, "SKU-1", got.Identifier)
	require.Equal(t, "Kilian", got.Source)
	require.Equal(t, appended.Link, got.Link)
	require.Equal(t, appended.Image, got.Image)
	require.True(t, appended.Price.Equal(got.Price))

	backup, err := os.ReadFile(path + ".v0.bak")
	require.NoError(t, err)
	require.Equal(t, legacy, string(backup))

	// Later appends go straight to the canonical layout.
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("SKU-2", "Moonlight", "60")}))
	res, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Observations, 3)
	require.Equal(t, "SKU-2", res.Observations[2].Identifier)
	require.Equal(t, "Kilian", res.Observations[2].Source)
}

func TestStore_UpgradeKeepsUnknownColumnsAndDropsUnreadableRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	writeFile(t, path, "date,name,price,url,note\n"+
		"2025-12-01,Oud Wood,320.5,https://shop.example.com/oud.html,\"sale, 10%\"\n"+
		"2025-12-02,too,many,columns,here,extra\n")

	store := New(path)
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("SKU-1", "Black Phantom", "50")}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Equal(t, []string{
		"date,brand,name,price,identifier,link,image,note",
		`"2025-12-01","","Oud Wood",320.5,"","https://shop.example.com/oud.html","","sale, 10%"`,
		`"2026-03-01 09:30:15","Kilian","Black Phantom",50,"SKU-1","https://shop.example.com/SKU-1.html","",""`,
	}, lines)

	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Corrupt)
	require.Len(t, res.Observations, 2)
	require.Equal(t, "https://shop.example.com/oud.html", res.Observations[0].Identifier)
	require.Equal(t, "SKU-1", res.Observations[1].Identifier)
}

func TestStore_CanonicalLogIsNotRewritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	store := New(path)
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("A", "A", "10")}))
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("B", "B", "20")}))

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	require.Empty(t, matches, "no backup or temp file for a canonical log")
}

func TestStore_AppendRepairsMissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	writeFile(t, path, "date,brand,name,price,identifier,link,image\n"+
		`"2026-03-01 09:00:00","Kilian","A",10,"A","https://a",""`)

	store := New(path)
	require.NoError(t, store.Append(context.Background(), []v1.Observation{obs("B", "B", "20")}))

	res, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Observations, 2)
	require.Empty(t, res.Corrupt)
}

func TestStore_AppendFailureIsWriteFailed(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "missing-dir", "price_history.csv"))

	err := store.Append(context.Background(), []v1.Observation{obs("A", "A", "1")})
	require.ErrorIs(t, err, storage.ErrWriteFailed)
}

func TestStore_AppendRejectsInvalidBatchWithoutWriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.csv")
	store := New(path)

	bad := obs("", "no id", "1")
	err := store.Append(context.Background(), []v1.Observation{obs("A", "A", "1"), bad})
	require.ErrorIs(t, err, storage.ErrWriteFailed)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "nothing from the batch may be written")
}

func TestStore_Ping(t *testing.T) {
	require.NoError(t, New(filepath.Join(t.TempDir(), "h.csv")).Ping(context.Background()))
	require.Error(t, New(filepath.Join(t.TempDir(), "nope", "h.csv")).Ping(context.Background()))
}
