package schema_test

import (
	"fmt"
	"os"

	"github.com/matzehuels/sqltree/pkg/schema"
)

func Example() {
	ids := &schema.Sequence{}

	st, empleado, _ := schema.State{}.AddTable(ids)
	st, _ = st.RenameTable(empleado, "Empleado")
	st, _ = st.RenameField(empleado, "f_1", "id")
	st, _ = st.TogglePrimaryKey(empleado, "f_1", true)

	st, proyecto, _ := st.AddTable(ids)
	st, _ = st.RenameTable(proyecto, "Proyecto")
	st, _ = st.RenameField(proyecto, "f_2", "id_empleado")

	st, err := st.Connect(schema.Connection{
		Source: schema.Endpoint{NodeID: proyecto, Handle: schema.FKHandle("f_2")},
		Target: schema.Endpoint{NodeID: empleado, Handle: schema.PKHandle("f_1")},
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(st.Edges[0].SourceHandle, "->", st.Edges[0].TargetHandle)

	_ = schema.Export(st, "SELECT * FROM Proyecto").WriteJSON(os.Stdout)
	// Output:
	// f_2-in-src-btm-0 -> f_1-out-tgt-btm-0
	// {
	//   "tables": [
	//     {
	//       "name": "Empleado",
	//       "columns": [
	//         {
	//           "name": "id",
	//           "type": "int",
	//           "primaryKey": true
	//         }
	//       ]
	//     },
	//     {
	//       "name": "Proyecto",
	//       "columns": [
	//         {
	//           "name": "id_empleado",
	//           "type": "int",
	//           "foreignKey": {
	//             "referencedTable": "Empleado",
	//             "referencedColumn": "id"
	//           }
	//         }
	//       ]
	//     }
	//   ],
	//   "sqlQuery": "SELECT * FROM Proyecto"
	// }
}

func ExampleNextLane() {
	fmt.Println(schema.NextLane([]int{0, 1, 3}, 6))
	fmt.Println(schema.NextLane([]int{0, 1, 2, 3, 4, 5}, 6))
	// Output:
	// 2
	// 0
}

func ExampleParseHandle() {
	h, _ := schema.ParseHandle("f_7-out-tgt-btm-2")
	fmt.Println(h.FieldID, h.Kind, h.Lane)
	// Output: f_7 out-tgt-btm 2
}
