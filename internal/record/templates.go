package record

var templates = map[Category]string{
	Article: `Título: Nombre del artículo
Autores: Autor1, Autor2, Autor3
Revista: Nombre de la revista
Vol(No): 5(3)
Páginas: 123-135
Año: 2023
DOI: 10.xxxx/xxxx
ISSN: xxxx-xxxx
Indexación: SCI, SCOPUS`,

	Thesis: `Título: Título de la tesis
Autor: Nombre del autor
Tipo: Maestría/Doctorado
Director: Nombre del director
Institución: Nombre de la institución
Año: 2023
Departamento: Nombre del departamento
Programa: Nombre del programa`,

	Conference: `Título: Título de la presentación
Autores: Autor1, Autor2
Evento: Nombre del evento
Tipo: Nacional/Internacional
Lugar: Ciudad, País
Fecha: 2023-05-15
Memorias: Sí/No
ISBN: xxxx-xxxx-xx`,

	Funding: `Proyecto: Nombre del proyecto
Responsable: Nombre del responsable
Fuente: Nombre de la fuente
Monto: $100,000 MXN
Periodo: 2022-2023
Clave: CLAVE-123
Tipo: Interno/Externo`,
}

// Template returns the suggested input format for the category.
func (c Category) Template() string {
	return templates[c]
}
