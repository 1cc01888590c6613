package analysis

import (
	"testing"

	"github.com/KaramelBytes/datana-cli/internal/parser"
)

func TestProfileKindsAndOutliers(t *testing.T) {
	scores := []string{"10,0", "11,0", "9,5", "10,5", "9,8", "10,2", "8,8", "9,7", "50,0"}
	tbl := &parser.Table{Header: []string{"Score", "Group", "Day", "Note"}}
	for i, s := range scores {
		group := "A"
		if i%3 == 0 {
			group = "B"
		}
		note := "row " + string(rune('a'+i))
		tbl.Rows = append(tbl.Rows, []string{s, group, "2024-01-0" + string(rune('1'+i)), note})
	}
	tbl.Rows = append(tbl.Rows, []string{"", "", "", ""})

	cols := Profile(tbl, ProfileOptions{})
	if len(cols) != 4 {
		t.Fatalf("cols = %d", len(cols))
	}
	score := cols[0]
	if score.Kind != KindNumeric || score.Missing != 1 || score.NonNull != 9 {
		t.Fatalf("score = %+v", score)
	}
	if score.Min != 8.8 || score.Max != 50 {
		t.Fatalf("score range = %v..%v", score.Min, score.Max)
	}
	if score.OutliersCount != 1 || score.OutlierThreshold != 3.5 {
		t.Fatalf("outliers = %d thr %v", score.OutliersCount, score.OutlierThreshold)
	}
	if cols[1].Kind != KindCategorical || cols[1].TopValues[0].Value != "A" || cols[1].Unique != 2 {
		t.Fatalf("group = %+v", cols[1])
	}
	if cols[2].Kind != KindDatetime {
		t.Fatalf("day = %+v", cols[2])
	}
	if cols[3].Kind != KindText || len(cols[3].ExampleTexts) != 3 {
		t.Fatalf("note = %+v", cols[3])
	}
}

func TestMedianMAD(t *testing.T) {
	med, mad := medianMAD([]float64{1, 2, 3, 4, 100})
	if med != 3 || mad != 1 {
		t.Fatalf("median=%v mad=%v", med, mad)
	}
	if m, d := medianMAD(nil); m != 0 || d != 0 {
		t.Fatal("empty input should yield zeros")
	}
}
