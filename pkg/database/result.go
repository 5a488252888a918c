package database

import (
	"database/sql"
	"strings"
)

// -----------------------------------------------------------------------------
// RESULT HELPERS
// -----------------------------------------------------------------------------
// sql.Rows'u []Row'a çeviren yardımcılar. MySQL driver metin kolonlarını
// []byte olarak döndürür; bunlar string'e çevrilir. BLOB/BINARY kolonlar
// []byte olarak kalır.
// -----------------------------------------------------------------------------

// rowsToMaps, sql.Rows'ı []Row biçimine dönüştürür.
func rowsToMaps(rows *sql.Rows) ([]Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	binary := make([]bool, len(cols))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			binary[i] = isBinaryColumn(ct.DatabaseTypeName())
		}
	}

	res := make([]Row, 0)

	for rows.Next() {
		columns := make([]any, len(cols))
		columnPointers := make([]any, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		m := make(Row, len(cols))
		for i, colName := range cols {
			val := columns[i]
			if b, ok := val.([]byte); ok {
				if binary[i] {
					val = append([]byte(nil), b...)
				} else {
					val = string(b)
				}
			}
			m[colName] = val
		}

		res = append(res, m)
	}

	return res, rows.Err()
}

func isBinaryColumn(typeName string) bool {
	t := strings.ToUpper(typeName)
	return strings.Contains(t, "BLOB") || strings.Contains(t, "BINARY")
}
